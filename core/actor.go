package core

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID      int64
	Name    string
	Email   string
	IsAdmin bool
}

// CanModify reports whether the actor may edit or delete something owned by ownerID.
func (a Actor) CanModify(ownerID int64) bool {
	return a.IsAdmin || (a.ID != 0 && a.ID == ownerID)
}
