package uow

import "context"

// AfterSuccess is a function that runs after every step has completed.
type AfterSuccess func(ctx context.Context)

type step struct {
	do   func(ctx context.Context) error
	undo func(ctx context.Context)
}

// UoW sequences the steps of a multi-entity mutation where each step is
// individually atomic at the storage layer. A step may register an undo;
// when a later step fails, the undos of every completed step run in
// reverse order, so the whole unit either applies fully or leaves no
// trace. Hooks registered with After run only once all steps succeed.
type UoW struct {
	steps []step
	after []AfterSuccess
}

func New() *UoW {
	return &UoW{}
}

func (u *UoW) Step(do func(ctx context.Context) error, undo func(ctx context.Context)) {
	u.steps = append(u.steps, step{do: do, undo: undo})
}

func (u *UoW) After(h AfterSuccess) {
	u.after = append(u.after, h)
}

// Run executes the steps in order. On the first failure it compensates
// completed steps in reverse order and returns the failing step's error.
// Compensation runs on a detached context: a caller abandoning the
// request must not leave the unit half-applied.
func (u *UoW) Run(ctx context.Context) error {
	for i := range u.steps {
		if err := u.steps[i].do(ctx); err != nil {
			undoCtx := context.WithoutCancel(ctx)
			for j := i - 1; j >= 0; j-- {
				if u.steps[j].undo != nil {
					u.steps[j].undo(undoCtx)
				}
			}
			return err
		}
	}

	for _, h := range u.after {
		h(ctx)
	}

	return nil
}
