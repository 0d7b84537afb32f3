package booking

import (
	"dispensary/internal/access"
	"dispensary/internal/model"
)

// Partition splits appts into the identity's own appointments and everyone
// else's, preserving order. Appointments with an unknown owner go to others.
func Partition(appts []model.Appointment, identityKey string) (mine, others []model.Appointment) {
	mine = make([]model.Appointment, 0, len(appts))
	others = make([]model.Appointment, 0, len(appts))
	for i := range appts {
		if access.IsOwned(&appts[i], identityKey) {
			mine = append(mine, appts[i])
		} else {
			others = append(others, appts[i])
		}
	}
	return mine, others
}
