package quest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DianeXD/BetterQuesting/internal/party"
)

// buildDB adds quests 1..n where quest i has one checkbox task, then applies
// each shape function.
func buildDB(t *testing.T, n int, shape func(db *Database)) *Database {
	t.Helper()

	db := NewDatabase()
	for i := 1; i <= n; i++ {
		q := NewQuest(i)
		q.Tasks = []Task{NewCheckboxTask()}
		require.NoError(t, db.Add(q))
	}
	if shape != nil {
		shape(db)
	}
	return db
}

func completeQuest(db *Database, id int, userID uuid.UUID) {
	q, _ := db.Get(id)
	for _, task := range q.Tasks {
		task.SetCompletion(party.None{}, userID, true)
	}
}

func TestQuest_IsCompleteVacuouslyTrueWithoutTasks(t *testing.T) {
	q := NewQuest(1)
	assert.True(t, q.IsComplete(alice))
}

func TestQuest_IsUnlockedNoRequirements(t *testing.T) {
	db := buildDB(t, 1, nil)
	q, _ := db.Get(1)

	for _, logic := range []Logic{LogicAnd, LogicOr, LogicXor} {
		q.Logic = logic
		assert.True(t, q.IsUnlocked(db, alice), "logic %s", logic)
	}
}

func TestQuest_IsUnlockedAnd(t *testing.T) {
	db := buildDB(t, 3, func(db *Database) {
		q, _ := db.Get(3)
		q.Requirements = []int{1, 2}
	})
	q, _ := db.Get(3)

	assert.False(t, q.IsUnlocked(db, alice))

	completeQuest(db, 1, alice)
	assert.False(t, q.IsUnlocked(db, alice), "AND needs all requirements")

	completeQuest(db, 2, alice)
	assert.True(t, q.IsUnlocked(db, alice))
}

func TestQuest_IsUnlockedOr(t *testing.T) {
	db := buildDB(t, 3, func(db *Database) {
		q, _ := db.Get(3)
		q.Logic = LogicOr
		q.Requirements = []int{1, 2}
	})
	q, _ := db.Get(3)

	assert.False(t, q.IsUnlocked(db, alice))

	completeQuest(db, 2, alice)
	assert.True(t, q.IsUnlocked(db, alice))
}

func TestQuest_IsUnlockedXorChoice(t *testing.T) {
	db := buildDB(t, 3, func(db *Database) {
		q, _ := db.Get(3)
		q.Logic = LogicXor
		q.Requirements = []int{1, 2}
	})
	q, _ := db.Get(3)

	// No branch done: locked.
	assert.False(t, q.IsUnlocked(db, alice))

	// Exactly one branch done: unlocked.
	completeQuest(db, 1, alice)
	assert.True(t, q.IsUnlocked(db, alice))

	// Both branches done: the choice window closed.
	completeQuest(db, 2, alice)
	assert.False(t, q.IsUnlocked(db, alice))
}

func TestQuest_DanglingRequirementCountsAsSatisfied(t *testing.T) {
	db := buildDB(t, 2, func(db *Database) {
		q, _ := db.Get(2)
		q.Requirements = []int{1, 999}
	})
	q, _ := db.Get(2)

	assert.False(t, q.IsUnlocked(db, alice))
	completeQuest(db, 1, alice)
	assert.True(t, q.IsUnlocked(db, alice), "missing requirement must not lock content")
}

func TestQuest_CompletedForLine(t *testing.T) {
	db := buildDB(t, 4, func(db *Database) {
		q, _ := db.Get(3)
		q.Logic = LogicXor
		q.Requirements = []int{1, 2}
	})

	q3, _ := db.Get(3)
	assert.False(t, q3.CompletedForLine(db, alice))

	// An untaken XOR branch settles the quest once both alternatives are
	// done, so the chapter can still roll up as complete.
	completeQuest(db, 1, alice)
	completeQuest(db, 2, alice)
	assert.True(t, q3.CompletedForLine(db, alice))

	// Hidden quests always count as settled.
	q4, _ := db.Get(4)
	q4.Visibility = VisHidden
	assert.True(t, q4.CompletedForLine(db, alice))

	// Actually completing the quest settles it regardless of logic.
	completeQuest(db, 3, alice)
	q3.Logic = LogicAnd
	assert.True(t, q3.CompletedForLine(db, alice))
}

func TestQuest_CanClaim(t *testing.T) {
	db := buildDB(t, 2, func(db *Database) {
		q, _ := db.Get(2)
		q.Requirements = []int{1}
		q.Rewards = []Reward{{Kind: "xp", Amount: 10}}
	})
	q, _ := db.Get(2)

	assert.False(t, q.CanClaimBasically(alice), "incomplete quest has nothing to claim")

	// Force-completed but still locked: pending claim shows, claim refuses.
	completeQuest(db, 2, alice)
	assert.True(t, q.CanClaimBasically(alice))
	assert.False(t, q.CanClaim(db, alice))

	completeQuest(db, 1, alice)
	assert.True(t, q.CanClaim(db, alice))

	q.SetClaimed(alice, true)
	assert.False(t, q.CanClaimBasically(alice))
	assert.False(t, q.CanClaim(db, alice))
	assert.False(t, q.CanClaim(db, bob), "claims are per user")
}

func TestQuest_NoRewardsNothingToClaim(t *testing.T) {
	q := NewQuest(1)
	q.Tasks = []Task{NewCheckboxTask()}
	q.Tasks[0].SetCompletion(party.None{}, alice, true)

	assert.False(t, q.CanClaimBasically(alice))
}

func TestQuest_DetectRunsEveryTask(t *testing.T) {
	counter := NewCounterTask(2)
	q := NewQuest(1)
	q.Tasks = []Task{NewCheckboxTask(), counter}

	assert.False(t, q.Detect(party.None{}, alice), "counter is still short of target")
	assert.True(t, q.Tasks[0].IsComplete(alice), "checkbox still completed on detect")

	counter.Advance(party.None{}, alice, 2)
	assert.True(t, q.Detect(party.None{}, alice))
}

func TestQuest_ResetProgressDropsClaim(t *testing.T) {
	q := NewQuest(1)
	q.Tasks = []Task{NewCheckboxTask()}
	q.Rewards = []Reward{{Kind: "xp"}}

	q.Tasks[0].SetCompletion(party.None{}, alice, true)
	q.SetClaimed(alice, true)

	q.ResetProgress(alice)
	assert.False(t, q.IsComplete(alice))
	assert.False(t, q.HasClaimed(alice))
}

func TestQuest_ResetPartyProgress(t *testing.T) {
	q := NewQuest(1)
	q.Tasks = []Task{NewCheckboxTask()}
	dir := pairDir(alice, bob)

	q.Tasks[0].SetCompletion(dir, alice, true)
	q.SetClaimed(alice, true)
	q.SetClaimed(bob, true)
	q.Tasks[0].SetCompletion(party.None{}, carol, true)
	q.SetClaimed(carol, true)

	q.ResetPartyProgress(dir, alice)
	assert.False(t, q.IsComplete(alice))
	assert.False(t, q.HasClaimed(bob))
	assert.True(t, q.IsComplete(carol))
	assert.True(t, q.HasClaimed(carol))
}

func TestQuest_ClaimedRoundTrip(t *testing.T) {
	q := NewQuest(1)
	q.SetClaimed(alice, true)
	q.SetClaimed(bob, true)

	users := q.ClaimedUsers()
	assert.Len(t, users, 2)

	fresh := NewQuest(1)
	errs := fresh.ReadClaimed(append(users, "garbage"))
	assert.Len(t, errs, 1)
	assert.True(t, fresh.HasClaimed(alice))
	assert.True(t, fresh.HasClaimed(bob))
	assert.False(t, fresh.HasClaimed(carol))
}

func TestDatabase_OrderedAndDuplicates(t *testing.T) {
	db := NewDatabase()
	require.NoError(t, db.Add(NewQuest(5)))
	require.NoError(t, db.Add(NewQuest(2)))
	require.NoError(t, db.Add(NewQuest(9)))

	assert.Error(t, db.Add(NewQuest(2)), "duplicate IDs are rejected")

	var ids []int
	for _, q := range db.Ordered() {
		ids = append(ids, q.ID)
	}
	assert.Equal(t, []int{5, 2, 9}, ids, "insertion order is preserved")
	assert.Equal(t, 3, db.Len())
}

func TestDatabase_DetectCycles(t *testing.T) {
	db := buildDB(t, 5, func(db *Database) {
		// 1 -> 2 -> 3 -> 1 is a cycle; 4 depends on the cycle but is not
		// on it; 5 is clean.
		q1, _ := db.Get(1)
		q1.Requirements = []int{2}
		q2, _ := db.Get(2)
		q2.Requirements = []int{3}
		q3, _ := db.Get(3)
		q3.Requirements = []int{1}
		q4, _ := db.Get(4)
		q4.Requirements = []int{3}
	})

	cyclic := db.DetectCycles()
	assert.Equal(t, []int{1, 2, 3}, cyclic)

	assert.True(t, db.Cyclic(1))
	assert.False(t, db.Cyclic(4), "depending on a cycle is not being on one")
	assert.False(t, db.Cyclic(5))

	// Cyclic quests are permanently locked.
	q1, _ := db.Get(1)
	completeQuest(db, 2, alice)
	assert.False(t, q1.IsUnlocked(db, alice))
}

func TestDatabase_DetectCyclesSelfLoop(t *testing.T) {
	db := buildDB(t, 2, func(db *Database) {
		q, _ := db.Get(1)
		q.Requirements = []int{1}
	})

	assert.Equal(t, []int{1}, db.DetectCycles())
	assert.True(t, db.Cyclic(1))
	assert.False(t, db.Cyclic(2))
}

func TestDatabase_DetectCyclesIgnoresDanglingEdges(t *testing.T) {
	db := buildDB(t, 1, func(db *Database) {
		q, _ := db.Get(1)
		q.Requirements = []int{999}
	})

	assert.Empty(t, db.DetectCycles())
}
