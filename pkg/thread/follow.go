package thread

// ShouldFollow reports whether the view should jump to a message that was just
// appended. A background refresh must not yank the viewer away from older
// history, so following happens only on the first load of the thread, when the
// viewer is already near the bottom, or when the appended message is the
// viewer's own.
func ShouldFollow(firstLoad, nearBottom, ownMessage bool) bool {
	return firstLoad || nearBottom || ownMessage
}
