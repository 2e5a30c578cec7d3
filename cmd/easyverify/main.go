// Command easyverify runs bound propagation experiments: for every instance
// of a YAML experiment configuration it loads a network fixture and a
// property file, computes symbolic bounds under a wall-clock deadline and
// appends one CSV row per instance.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/itohio/EasyVerify/pkg/core/verify/bp"
	"github.com/itohio/EasyVerify/pkg/core/verify/network"
	"github.com/itohio/EasyVerify/pkg/core/verify/property"
	"github.com/itohio/EasyVerify/pkg/logger"
)

var (
	configPath = flag.String("config", "experiment.yaml", "Experiment configuration file")
	outPath    = flag.String("out", "results.csv", "CSV results file")
)

type instanceConfig struct {
	Name     string `yaml:"name"`
	Network  string `yaml:"network"`
	Property string `yaml:"property"`
	Timeout  string `yaml:"timeout"`
}

type experimentConfig struct {
	Instances []instanceConfig `yaml:"instances"`
}

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("experiment failed")
	}
}

func run(ctx context.Context) error {
	raw, err := os.ReadFile(*configPath)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var cfg experimentConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if len(cfg.Instances) == 0 {
		return fmt.Errorf("config %s has no instances", *configPath)
	}

	out, err := os.Create(*outPath)
	if err != nil {
		return fmt.Errorf("create results file: %w", err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	defer w.Flush()
	if err := w.Write([]string{"instance", "status", "output_lower", "output_upper", "elapsed_ms"}); err != nil {
		return err
	}

	for _, inst := range cfg.Instances {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		row := runInstance(ctx, inst)
		if err := w.Write(row); err != nil {
			return err
		}
		w.Flush()
	}
	return w.Error()
}

func runInstance(ctx context.Context, inst instanceConfig) []string {
	log := logger.Log.With().Str("instance", inst.Name).Logger()

	timeout := 5 * time.Minute
	if inst.Timeout != "" {
		d, err := time.ParseDuration(inst.Timeout)
		if err != nil {
			log.Error().Err(err).Msg("invalid timeout")
			return []string{inst.Name, "error", "", "", "0"}
		}
		timeout = d
	}

	netFile, err := os.Open(inst.Network)
	if err != nil {
		log.Error().Err(err).Msg("open network fixture")
		return []string{inst.Name, "error", "", "", "0"}
	}
	net, err := network.LoadNetwork(netFile)
	netFile.Close()
	if err != nil {
		log.Error().Err(err).Msg("load network fixture")
		return []string{inst.Name, "error", "", "", "0"}
	}

	propFile, err := os.Open(inst.Property)
	if err != nil {
		log.Error().Err(err).Msg("open property")
		return []string{inst.Name, "error", "", "", "0"}
	}
	prop, err := property.ParseProperty(propFile)
	propFile.Close()
	if err != nil {
		log.Error().Err(err).Msg("parse property")
		return []string{inst.Name, "error", "", "", "0"}
	}

	type outcome struct {
		result *bp.Bounds
		err    error
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan outcome, 1)
	go func() {
		// The propagation core is pure and has no cancellation primitive;
		// the deadline is enforced by abandoning the goroutine.
		result, err := bp.NewBoundsManager(net, prop).ComputeBounds()
		done <- outcome{result: result, err: err}
	}()

	select {
	case <-runCtx.Done():
		log.Warn().Dur("timeout", timeout).Msg("instance timed out")
		return []string{inst.Name, "timeout", "", "", fmt.Sprint(time.Since(start).Milliseconds())}
	case o := <-done:
		elapsed := time.Since(start).Milliseconds()
		if o.err != nil {
			log.Error().Err(o.err).Msg("bound computation failed")
			return []string{inst.Name, "error", "", "", fmt.Sprint(elapsed)}
		}
		order := o.result.Order()
		last := o.result.NumericPost[order[len(order)-1]]
		log.Info().Int("layers", len(order)).Int64("elapsed_ms", elapsed).Msg("bounds computed")
		return []string{
			inst.Name,
			"ok",
			joinFloats(last.Lower()),
			joinFloats(last.Upper()),
			fmt.Sprint(elapsed),
		}
	}
}

func joinFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return strings.Join(parts, ";")
}
