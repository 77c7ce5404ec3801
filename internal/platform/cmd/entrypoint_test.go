package cmd

import (
	"context"
	"errors"
	"flag"
	"testing"
)

type testConfig struct {
	Address string `env:"CMD_TEST_ADDRESS" envDefault:"127.0.0.1:8080"`
	Mode    string `env:"CMD_TEST_MODE" envDefault:"server"`
}

func TestParseConfigReadsEnvAndFlags(t *testing.T) {
	t.Setenv("CMD_TEST_ADDRESS", "env:9000")
	t.Setenv("CMD_TEST_MODE", "env-mode")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfgRef := testConfig{}
	if err := ParseConfig(&cfgRef); err != nil {
		t.Fatalf("load config defaults: %v", err)
	}
	fs.StringVar(&cfgRef.Address, "address", cfgRef.Address, "address")
	fs.StringVar(&cfgRef.Mode, "mode", cfgRef.Mode, "mode")

	if err := ParseArgs(fs, []string{"-address", "flag:9001"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if cfgRef.Address != "flag:9001" {
		t.Fatalf("expected flag value for address, got %q", cfgRef.Address)
	}
	if cfgRef.Mode != "env-mode" {
		t.Fatalf("expected env default mode, got %q", cfgRef.Mode)
	}
}

func TestParseConfigRejectsNilTarget(t *testing.T) {
	if err := ParseConfig[testConfig](nil); err == nil {
		t.Fatal("expected nil target error")
	}
}

func TestParseArgsRejectsNilParser(t *testing.T) {
	if err := ParseArgs(nil, []string{}); err == nil {
		t.Fatal("expected parse args to reject nil parser")
	}
}

func TestRunWithTelemetryRejectsMissingInputs(t *testing.T) {
	if err := RunWithTelemetry(context.Background(), "", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected missing service error")
	}
	if err := RunWithTelemetry(context.Background(), ServiceCompare, nil); err == nil {
		t.Fatal("expected missing run function error")
	}
}

func TestRunWithTelemetryAndOptionsShutsDownAfterRun(t *testing.T) {
	var calls []string
	options := RunOptions{
		Setup: func(_ context.Context, service string) (func(context.Context) error, error) {
			calls = append(calls, "setup:"+service)
			return func(context.Context) error {
				calls = append(calls, "shutdown")
				return errors.New("flush failed")
			}, nil
		},
	}
	runErr := errors.New("boom")
	err := RunWithTelemetryAndOptions(context.Background(), ServiceCompare, options, func(context.Context) error {
		calls = append(calls, "run")
		return runErr
	})
	if !errors.Is(err, runErr) {
		t.Fatalf("err = %v, want %v", err, runErr)
	}
	want := []string{"setup:compare", "run", "shutdown"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
	}
}

func TestRunWithTelemetryAndOptionsReturnsSetupError(t *testing.T) {
	setupErr := errors.New("exporter")
	options := RunOptions{
		Setup: func(context.Context, string) (func(context.Context) error, error) {
			return nil, setupErr
		},
	}
	ran := false
	err := RunWithTelemetryAndOptions(context.Background(), ServicePlanctl, options, func(context.Context) error {
		ran = true
		return nil
	})
	if !errors.Is(err, setupErr) {
		t.Fatalf("err = %v, want %v", err, setupErr)
	}
	if ran {
		t.Fatal("run should not execute after setup failure")
	}
}
