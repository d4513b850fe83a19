package wizard

const UnsavedChangesMessage = "Sie haben ungespeicherte Änderungen. Wenn Sie fortfahren, gehen diese verloren. Möchten Sie fortfahren?"

// ConfirmFunc asks the user a yes/no question and blocks until answered.
type ConfirmFunc func(message string) bool

// Guard asks before unsaved changes are left behind. Once the user agreed,
// the warning is not shown again until Reset.
type Guard struct {
	changes      func() bool
	confirm      ConfirmFunc
	warningShown bool
}

func NewGuard(changes func() bool, confirm ConfirmFunc) *Guard {
	return &Guard{changes: changes, confirm: confirm}
}

func (g *Guard) SetConfirm(confirm ConfirmFunc) {
	g.confirm = confirm
}

// Allow reports whether navigation may proceed. Without a confirm callback
// unsaved changes are left without asking.
func (g *Guard) Allow() bool {
	if g.warningShown || g.changes == nil || !g.changes() {
		return true
	}
	if g.confirm == nil {
		return true
	}
	if !g.confirm(UnsavedChangesMessage) {
		return false
	}
	g.warningShown = true
	return true
}

func (g *Guard) WarningShown() bool {
	return g.warningShown
}

func (g *Guard) Reset() {
	g.warningShown = false
}
