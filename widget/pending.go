package widget

// Pending 一次异步操作的结果
type Pending struct {
	done chan struct{}
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) resolve(err error) {
	p.err = err
	close(p.done)
}

// Done 操作结束时关闭
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait 阻塞直到操作结束
func (p *Pending) Wait() error {
	<-p.done
	return p.err
}
