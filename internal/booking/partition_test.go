package booking

import (
	"fmt"
	"math/rand"
	"testing"

	"dispensary/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestPartition(t *testing.T) {
	appts := []model.Appointment{
		{ID: 1, Patient: model.PatientRef{Email: "a@x.com"}},
		{ID: 2, Patient: model.PatientRef{Email: "b@x.com"}},
		{ID: 3},
		{ID: 4, Patient: model.PatientRef{Email: " A@X.com"}},
	}

	mine, others := Partition(appts, "A@X.COM")
	assert.Equal(t, []int64{1, 4}, ids(mine))
	assert.Equal(t, []int64{2, 3}, ids(others))
}

func TestPartition_DisjointAndComplete(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	emails := []string{"a@x.com", "B@x.com", "", "c@x.com ", "A@X.COM"}

	for round := 0; round < 50; round++ {
		n := r.Intn(20)
		appts := make([]model.Appointment, n)
		for i := range appts {
			appts[i] = model.Appointment{ID: int64(i + 1), Patient: model.PatientRef{Email: emails[r.Intn(len(emails))]}}
		}
		identity := emails[r.Intn(len(emails))]

		mine, others := Partition(appts, identity)

		t.Run(fmt.Sprintf("round_%d", round), func(t *testing.T) {
			assert.Len(t, append(mine, others...), n)
			seen := map[int64]bool{}
			for _, a := range mine {
				seen[a.ID] = true
			}
			for _, a := range others {
				assert.False(t, seen[a.ID], "appointment %d in both partitions", a.ID)
				seen[a.ID] = true
			}
			assert.Len(t, seen, n)
		})
	}
}

func ids(appts []model.Appointment) []int64 {
	out := make([]int64, 0, len(appts))
	for _, a := range appts {
		out = append(out, a.ID)
	}
	return out
}
