package infra

import "time"

// DoneContext é o mínimo necessário para aceitar context.Context sem importar context aqui.
type DoneContext interface {
	Done() <-chan struct{}
}

// startJanitor roda cleanup a cada intervalo até o contexto encerrar.
func startJanitor(ctx DoneContext, every time.Duration, cleanup func() int) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				cleanup()
			}
		}
	}()
}
