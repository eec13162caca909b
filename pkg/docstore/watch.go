package docstore

import "context"

// Watch subscribes to path and maps every snapshot through convert. The
// returned stop func cancels the subscription and closes the channel.
func Watch[T any](ctx context.Context, s Store, path string, convert func(Snapshot) T) (<-chan T, func(), error) {
	ctx, stop := context.WithCancel(ctx)
	snaps, cancel, err := s.Subscribe(ctx, path)
	if err != nil {
		stop()
		return nil, nil, err
	}
	out := make(chan T, 1)
	go func() {
		defer close(out)
		defer cancel()
		for snap := range snaps {
			select {
			case out <- convert(snap):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, stop, nil
}
