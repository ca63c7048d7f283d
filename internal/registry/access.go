package registry

// requireOwner is the single capability check applied to every mutation.
func (r *Registry) requireOwner(caller string) error {
	if caller == "" || caller != r.owner {
		return ErrNotOwner
	}
	return nil
}
