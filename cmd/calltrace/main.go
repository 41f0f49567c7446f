package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/jkbrsn/calltrace"
	"github.com/rs/zerolog/log"
)

// Greeter is an example service with operations worth timing.
type Greeter struct{}

// Greet builds a greeting, slowly enough to clear the recording threshold.
func (Greeter) Greet(name string) string {
	time.Sleep(2 * time.Millisecond)
	return fmt.Sprintf("Hello, %s!", name)
}

// Shout upper-cases a greeting, failing on empty input.
func (Greeter) Shout(name string) (string, error) {
	time.Sleep(time.Millisecond)
	if name == "" {
		return "", fmt.Errorf("nothing to shout")
	}
	return strings.ToUpper(name) + "!", nil
}

func main() {
	tracer, err := calltrace.New(Greeter{},
		calltrace.WithThreshold(0),
		calltrace.WithAutoOutput(),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create tracer")
	}
	tracer.Trace("Greet", "Shout")

	out := tracer.Invoke("Greet", "World")
	log.Info().Msgf("greet returned: %v", out[0])

	if res := tracer.Invoke("Shout", "go"); res[1] == nil {
		log.Info().Msgf("shout returned: %v", res[0])
	}
	_ = tracer.Invoke("Shout", "")

	snap := tracer.Results()
	log.Info().Msgf("%d calls traced, %s total", snap.TotalCalls, snap.TotalTime)

	data, err := snap.JSON()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to encode snapshot")
	}
	log.Info().Msg(string(data))
}
