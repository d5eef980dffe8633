package quest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DianeXD/BetterQuesting/internal/party"
)

var (
	alice = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	bob   = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	carol = uuid.MustParse("33333333-3333-3333-3333-333333333333")
)

// staticDir resolves one fixed party for its members and nothing for
// anyone else.
type staticDir struct {
	party party.Party
}

func (d staticDir) PartyOf(userID uuid.UUID) (party.Party, bool) {
	if d.party.HasMember(userID) {
		return d.party, true
	}
	return party.Party{}, false
}

func pairDir(a, b uuid.UUID) staticDir {
	return staticDir{party: party.Party{ID: "party_1", Name: "pair", Members: []uuid.UUID{a, b}}}
}

func TestCheckboxTask_SetCompletionSolo(t *testing.T) {
	task := NewCheckboxTask()

	if task.IsComplete(alice) {
		t.Fatalf("fresh task should not be complete")
	}
	assert.Equal(t, 0.0, task.Participation(alice))

	task.SetCompletion(party.None{}, alice, true)
	assert.True(t, task.IsComplete(alice))
	assert.False(t, task.IsComplete(bob))
	assert.Equal(t, 1.0, task.Participation(alice))

	// Setting true again is a no-op, not an error.
	task.SetCompletion(party.None{}, alice, true)
	assert.True(t, task.IsComplete(alice))

	task.SetCompletion(party.None{}, alice, false)
	assert.False(t, task.IsComplete(alice))
}

func TestCheckboxTask_PartyFanOut(t *testing.T) {
	task := NewCheckboxTask()
	dir := pairDir(alice, bob)

	task.SetCompletion(dir, alice, true)
	assert.True(t, task.IsComplete(alice))
	assert.True(t, task.IsComplete(bob), "party member should share completion")
	assert.False(t, task.IsComplete(carol))

	// Unsetting fans out the same way.
	task.SetCompletion(dir, bob, false)
	assert.False(t, task.IsComplete(alice))
	assert.False(t, task.IsComplete(bob))
}

func TestTask_ResetScopes(t *testing.T) {
	task := NewCheckboxTask()
	dir := pairDir(alice, bob)

	task.SetCompletion(dir, alice, true)
	task.SetCompletion(party.None{}, carol, true)

	// ResetProgress touches only the named user, even with a party.
	task.ResetProgress(alice)
	assert.False(t, task.IsComplete(alice))
	assert.True(t, task.IsComplete(bob))
	assert.True(t, task.IsComplete(carol))

	// ResetPartyProgress clears the whole party.
	task.SetCompletion(dir, alice, true)
	task.ResetPartyProgress(dir, bob)
	assert.False(t, task.IsComplete(alice))
	assert.False(t, task.IsComplete(bob))
	assert.True(t, task.IsComplete(carol))

	// Users without a party fall back to a single-user reset.
	task.ResetPartyProgress(dir, carol)
	assert.False(t, task.IsComplete(carol))

	task.SetCompletion(dir, alice, true)
	task.SetCompletion(party.None{}, carol, true)
	task.ResetAllProgress()
	assert.False(t, task.IsComplete(alice))
	assert.False(t, task.IsComplete(bob))
	assert.False(t, task.IsComplete(carol))
}

func TestCheckboxTask_ProgressRoundTrip(t *testing.T) {
	task := NewCheckboxTask()
	task.SetCompletion(party.None{}, alice, true)
	task.SetCompletion(party.None{}, bob, true)

	rec := task.WriteProgress(nil)

	fresh := NewCheckboxTask()
	errs := fresh.ReadProgress(rec)
	require.Empty(t, errs)
	assert.True(t, fresh.IsComplete(alice))
	assert.True(t, fresh.IsComplete(bob))
	assert.False(t, fresh.IsComplete(carol))
}

func TestCheckboxTask_WriteProgressFilter(t *testing.T) {
	task := NewCheckboxTask()
	task.SetCompletion(party.None{}, alice, true)
	task.SetCompletion(party.None{}, bob, true)

	rec := task.WriteProgress([]uuid.UUID{alice})
	users, ok := rec["completeUsers"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{alice.String()}, users)
}

func TestTask_ReadProgressSkipsMalformedEntries(t *testing.T) {
	task := NewCheckboxTask()
	rec := map[string]any{
		"completeUsers": []any{alice.String(), "not-a-uuid", 42, bob.String()},
	}

	errs := task.ReadProgress(rec)
	assert.Len(t, errs, 2, "one error per malformed entry")
	assert.True(t, task.IsComplete(alice))
	assert.True(t, task.IsComplete(bob), "valid entries after a bad one still load")
}

func TestTask_ReadProgressAcceptsNativeAndDecodedLists(t *testing.T) {
	// writeUsers emits []string; a record that detoured through JSON
	// decoding carries []any instead. Both must load.
	native := NewCheckboxTask()
	errs := native.ReadProgress(map[string]any{
		"completeUsers": []string{alice.String()},
	})
	require.Empty(t, errs)
	assert.True(t, native.IsComplete(alice))

	decoded := NewCheckboxTask()
	errs = decoded.ReadProgress(map[string]any{
		"completeUsers": []any{alice.String()},
	})
	require.Empty(t, errs)
	assert.True(t, decoded.IsComplete(alice))
}

func TestTask_LegacyDefinitionMigratesOnce(t *testing.T) {
	task := NewCheckboxTask()

	// Old saves embedded progress in the definition record.
	task.ReadDefinition(map[string]any{
		"completeUsers": []any{alice.String()},
	})

	// The first progress read consumes the buffered legacy record even
	// though its own argument is empty.
	errs := task.ReadProgress(map[string]any{})
	require.Empty(t, errs)
	assert.True(t, task.IsComplete(alice))

	// The buffer is one-shot: the next read trusts its argument.
	errs = task.ReadProgress(map[string]any{
		"completeUsers": []any{bob.String()},
	})
	require.Empty(t, errs)
	assert.False(t, task.IsComplete(alice))
	assert.True(t, task.IsComplete(bob))
}

func TestTask_ModernDefinitionDoesNotBuffer(t *testing.T) {
	task := NewCounterTask(1)
	task.ReadDefinition(map[string]any{"target": 5})

	task.SetCompletion(party.None{}, alice, true)
	errs := task.ReadProgress(task.WriteProgress(nil))
	require.Empty(t, errs)
	assert.True(t, task.IsComplete(alice))
	assert.Equal(t, 5, task.Target())
}

func TestCounterTask_AdvanceAndClamp(t *testing.T) {
	task := NewCounterTask(10)

	got := task.Advance(party.None{}, alice, 4)
	assert.Equal(t, 4, got)
	assert.False(t, task.IsComplete(alice))
	assert.InDelta(t, 0.4, task.Participation(alice), 1e-9)

	// Counts clamp at the target and never go negative.
	got = task.Advance(party.None{}, alice, 100)
	assert.Equal(t, 10, got)
	assert.True(t, task.IsComplete(alice))
	assert.Equal(t, 1.0, task.Participation(alice))

	got = task.Advance(party.None{}, bob, -3)
	assert.Equal(t, 0, got)
	assert.False(t, task.IsComplete(bob))
}

func TestCounterTask_CountsStayPerUserInParty(t *testing.T) {
	task := NewCounterTask(3)
	dir := pairDir(alice, bob)

	task.Advance(dir, alice, 2)
	assert.Equal(t, 2, task.Count(alice))
	assert.Equal(t, 0, task.Count(bob), "counts never fan out")

	// Completion itself does fan out once the target is hit.
	task.Advance(dir, alice, 1)
	assert.True(t, task.IsComplete(alice))
	assert.True(t, task.IsComplete(bob))
}

func TestCounterTask_DetectCompletesAtTarget(t *testing.T) {
	task := NewCounterTask(2)

	assert.False(t, task.Detect(party.None{}, alice))

	task.Advance(party.None{}, alice, 2)
	assert.True(t, task.Detect(party.None{}, alice))
}

func TestCounterTask_ResetClearsCount(t *testing.T) {
	task := NewCounterTask(2)
	task.Advance(party.None{}, alice, 2)

	task.ResetProgress(alice)
	assert.False(t, task.IsComplete(alice))
	assert.Equal(t, 0, task.Count(alice))
}

func TestCounterTask_ProgressRoundTrip(t *testing.T) {
	task := NewCounterTask(10)
	task.Advance(party.None{}, alice, 10)
	task.Advance(party.None{}, bob, 3)

	rec := task.WriteProgress(nil)

	fresh := NewCounterTask(10)
	errs := fresh.ReadProgress(rec)
	require.Empty(t, errs)
	assert.True(t, fresh.IsComplete(alice))
	assert.Equal(t, 3, fresh.Count(bob))
	assert.InDelta(t, 0.3, fresh.Participation(bob), 1e-9)
}

func TestCounterTask_ReadsLegacyFlatRecord(t *testing.T) {
	task := NewCounterTask(5)

	// Old records mixed kind fields in at the top level instead of
	// nesting them under "data".
	errs := task.ReadProgress(map[string]any{
		"completeUsers": []any{},
		"userProgress":  map[string]any{bob.String(): float64(2)},
	})
	require.Empty(t, errs)
	assert.Equal(t, 2, task.Count(bob))
}

func TestNewTask_Registry(t *testing.T) {
	task, ok := NewTask(KindCheckbox)
	require.True(t, ok)
	assert.Equal(t, KindCheckbox, task.Kind())

	task, ok = NewTask(KindCounter)
	require.True(t, ok)
	assert.Equal(t, KindCounter, task.Kind())

	if _, ok := NewTask("no_such_kind"); ok {
		t.Fatalf("unknown kind should not resolve")
	}
}
