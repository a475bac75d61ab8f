package notify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tabletimer/tabletimer/internal/notify"
)

func TestShouldNotify_FirstOccurrenceNotifies(t *testing.T) {
	tr := notify.NewTracker()

	assert.True(t, tr.ShouldNotify("dev1", notify.KindSeat, "3,7"))
}

func TestShouldNotify_RepeatPayloadSuppressed(t *testing.T) {
	tr := notify.NewTracker()

	assert.True(t, tr.ShouldNotify("dev1", notify.KindSeat, "3,7"))
	assert.False(t, tr.ShouldNotify("dev1", notify.KindSeat, "3,7"))
	assert.False(t, tr.ShouldNotify("dev1", notify.KindSeat, "3,7"))
}

func TestShouldNotify_ChangedPayloadNotifiesAgain(t *testing.T) {
	tr := notify.NewTracker()

	assert.True(t, tr.ShouldNotify("dev1", notify.KindSeat, "3,7"))
	assert.True(t, tr.ShouldNotify("dev1", notify.KindSeat, "3,7,9"))
	assert.False(t, tr.ShouldNotify("dev1", notify.KindSeat, "3,7,9"))
}

func TestShouldNotify_KindsAreIndependent(t *testing.T) {
	tr := notify.NewTracker()

	assert.True(t, tr.ShouldNotify("dev1", notify.KindSeat, "x"))
	assert.True(t, tr.ShouldNotify("dev1", notify.KindFloorman, "x"))
	assert.False(t, tr.ShouldNotify("dev1", notify.KindSeat, "x"))
}

func TestShouldNotify_DevicesAreIndependent(t *testing.T) {
	tr := notify.NewTracker()

	assert.True(t, tr.ShouldNotify("dev1", notify.KindBar, "beer"))
	assert.True(t, tr.ShouldNotify("dev2", notify.KindBar, "beer"))
}

func TestClear_IdenticalPayloadNotifiesAfterClear(t *testing.T) {
	tr := notify.NewTracker()

	assert.True(t, tr.ShouldNotify("dev1", notify.KindSeat, "3,7"))
	tr.Clear("dev1", notify.KindSeat)
	assert.True(t, tr.ShouldNotify("dev1", notify.KindSeat, "3,7"))
}

func TestClear_LeavesOtherKindsAlone(t *testing.T) {
	tr := notify.NewTracker()

	tr.ShouldNotify("dev1", notify.KindSeat, "a")
	tr.ShouldNotify("dev1", notify.KindFloorman, "b")
	tr.Clear("dev1", notify.KindSeat)

	assert.False(t, tr.ShouldNotify("dev1", notify.KindFloorman, "b"))
}

func TestClearDevice_DropsAllKinds(t *testing.T) {
	tr := notify.NewTracker()

	tr.ShouldNotify("dev1", notify.KindSeat, "a")
	tr.ShouldNotify("dev1", notify.KindFloorman, "b")
	tr.ShouldNotify("dev2", notify.KindSeat, "a")
	tr.ClearDevice("dev1")

	assert.True(t, tr.ShouldNotify("dev1", notify.KindSeat, "a"))
	assert.True(t, tr.ShouldNotify("dev1", notify.KindFloorman, "b"))
	assert.False(t, tr.ShouldNotify("dev2", notify.KindSeat, "a"))
}
