package quark

import "github.com/rs/zerolog"

// SpyToLogger bridges the spy channel to a zerolog logger at debug level.
// The returned function unsubscribes the bridge.
func SpyToLogger(ctx *ReactiveContext, logger zerolog.Logger) func() {
	return ctx.SpySubscribe(func(ev SpyEvent) {
		e := logger.Debug().Str("kind", ev.Kind.String())
		if ev.Name != "" {
			e = e.Str("name", ev.Name)
		}
		e.Msg("reactive event")
	})
}
