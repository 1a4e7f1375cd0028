// Command brewctl wires the brew domain together into a runnable process:
// bus, brew state machine, safety watchdog, and the dispatcher that ties
// them to the relay, scale, and display collaborators. The real BLE scale
// transport, GPIO driver, and OLED panel are out of scope (§1); this entry
// point wires console stand-ins for them so the binary boots and brews on
// a development machine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"brewcore/brew"
	"brewcore/bus"
	"brewcore/config"
	"brewcore/dispatcher"
	"brewcore/event"
	"brewcore/hardware"
	"brewcore/safety"
	"brewcore/x/logx"
	"brewcore/x/strx"
)

func main() {
	log := logx.New(os.Stderr, logx.LevelDebug)
	log.Debug("main", "starting brewctl")

	store := fileStore{path: configPath()}
	cfg, err := config.Load(store)
	if err != nil {
		log.Warn("main", "could not load persisted config, using defaults: "+err.Error())
		cfg = config.Default()
	}

	b := bus.New(bus.DefaultCapacity)
	machine := brew.New(cfg)
	watchdog := safety.New()

	relay := hardware.NewRelay(&consolePin{log: log}, false)
	if err := relay.Init(); err != nil {
		log.Error("main", "relay init failed: "+err.Error())
		os.Exit(1)
	}

	d := dispatcher.New(b, machine, watchdog, relay, &consoleScaleWriter{log: log}, &consoleDisplay{log: log}, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	persistOnConfigChange(ctx, b, store, cfg, log)

	log.Debug("main", "entering dispatcher loop")
	d.Run(ctx)

	log.Debug("main", "shut down")
}

func configPath() string {
	return strx.Coalesce(os.Getenv("BREWCORE_CONFIG"), "brewcore.json")
}

// persistOnConfigChange watches for the User.* config-mutating events and
// writes the resulting config back to disk, independent of the
// dispatcher's own subscription. It runs as its own task because
// persistence is a side concern the dispatcher loop itself should not
// block on.
func persistOnConfigChange(ctx context.Context, b *bus.Bus, store fileStore, initial brew.Config, log *logx.Logger) {
	sub := b.Subscribe(func(evt event.SystemEvent) bool {
		return evt.Category == event.CategoryUser &&
			(evt.Kind == event.KindSetTargetWeight || evt.Kind == event.KindSetAutoTare || evt.Kind == event.KindSetPredictiveStop)
	})

	go func() {
		defer sub.Unsubscribe()
		cfg := initial
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-sub.Channel():
				switch evt.Kind {
				case event.KindSetTargetWeight:
					cfg.TargetWeight = evt.TargetWeight
				case event.KindSetAutoTare:
					cfg.AutoTareEnabled = evt.Enabled
				case event.KindSetPredictiveStop:
					cfg.PredictiveStopEnabled = evt.Enabled
				}
				if err := config.Save(store, cfg); err != nil {
					log.Warn("main", "config save failed: "+err.Error())
				}
			}
		}
	}()
}

// fileStore is the simplest real config.Store: the settings document as a
// single flat file. The production device's NVS-backed store is out of
// scope; this one is enough to make brewctl a genuinely persistent binary
// on a development machine.
type fileStore struct{ path string }

func (s fileStore) Load() ([]byte, error) {
	b, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return b, err
}

func (s fileStore) Save(raw []byte) error {
	return os.WriteFile(s.path, raw, 0o644)
}

// consolePin stands in for the real relay GPIO pin: it logs every level
// change instead of driving hardware.
type consolePin struct {
	log   *logx.Logger
	level bool
}

func (p *consolePin) ConfigureOutput(level bool) error {
	p.level = level
	p.log.Debug("relay-pin", fmt.Sprintf("configured, initial level=%t", level))
	return nil
}

func (p *consolePin) Set(level bool) error {
	p.level = level
	p.log.Debug("relay-pin", fmt.Sprintf("level=%t", level))
	return nil
}

func (p *consolePin) Get() bool { return p.level }

// consoleScaleWriter stands in for the BLE command characteristic write.
type consoleScaleWriter struct{ log *logx.Logger }

func (w *consoleScaleWriter) Write(cmd event.ScaleCommand) error {
	w.log.Debug("scale-writer", "would send "+cmd.String())
	return nil
}

// consoleDisplay stands in for the OLED panel.
type consoleDisplay struct{ log *logx.Logger }

func (d *consoleDisplay) Update(payload any) {
	d.log.Debug("display", fmt.Sprintf("update: %+v", payload))
}

func (d *consoleDisplay) Alert(payload any) {
	d.log.Warn("display", fmt.Sprintf("alert: %+v", payload))
}
