package stdio

// wakeupPrimitive is the OS-abstracted edge-triggered signal described in
// spec.md §4.2: an object that can interrupt a blocking wait on the input
// descriptor. signal is idempotent and never blocks; drain discards any
// pending wakeup bytes after a wait returns. The descriptor/handle the
// platform wait call watches alongside stdin is not part of this interface:
// each platform's waitForInput reads it from its own concrete type.
//
// Three implementations exist, selected at construction by GOOS:
// wakeup_linux.go (eventfd + epoll), wakeup_windows.go (manual-reset
// event + WaitForMultipleObjects), wakeup_other.go (self-pipe + poll).
type wakeupPrimitive interface {
	signal()
	drain()
	close()
}
