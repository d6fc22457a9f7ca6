package client

import (
	"context"
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/dMsg/cmd/util"
	"github.com/ValentinKolb/dMsg/rpc/common"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"
)

var (
	PerfCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for dMsg backends",
		Args:    cobra.NoArgs,
		PreRunE: processPerfConfig,
		RunE:    runPerf,
	}
	perfNumThreads = 10
	perfWait       = 5 * time.Second
	perfSkip       = make([]string, 0)

	// round trip latencies of the transactions, one timer per benchmark
	perfRegistry = gometrics.NewRegistry()
)

// perfTests are run in this order
var perfTests = []struct {
	name string
	op   func() error
}{
	{name: "ping", op: pingOp},
	{name: "check", op: checkOp},
	{name: "log", op: logOp},
}

func init() {
	key := "skip"
	PerfCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. ping,log)"))
	key = "threads"
	PerfCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines sending concurrently"))
	key = "wait"
	PerfCmd.Flags().Int(key, 5, util.WrapString("Seconds to wait for a single reply before counting it as failed"))
	key = "csv"
	PerfCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfNumThreads = viper.GetInt("threads")
	perfWait = time.Duration(viper.GetInt("wait")) * time.Second
	perfSkip = strings.Split(viper.GetString("skip"), ",")
	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for dMsg backends")

	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Transport: %s\n", viper.GetString("transport"))
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	results := make(map[string]testing.BenchmarkResult)
	for _, test := range perfTests {
		if slices.Contains(perfSkip, test.name) {
			results[test.name] = testing.BenchmarkResult{}
			printResult(test.name, results[test.name])
			continue
		}

		timer := gometrics.GetOrRegisterTimer(test.name, perfRegistry)
		op := test.op
		name := test.name

		result := testing.Benchmark(func(b *testing.B) {
			b.SetParallelism(perfNumThreads)
			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					start := time.Now()
					if err := op(); err != nil {
						log.Printf("(%s) - %v\n", name, err)
						continue
					}
					timer.UpdateSince(start)
				}
			})
		})

		results[test.name] = result
		printResult(test.name, result)
	}

	fmt.Println()
	fmt.Println("Latencies:")
	for _, test := range perfTests {
		if timer, ok := perfRegistry.Get(test.name).(gometrics.Timer); ok {
			printLatency(test.name, timer)
		}
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return fmt.Errorf("failed to write CSV: %w", err)
		}
	}

	return nil
}

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

// pingOp runs one Ping/Pong transaction
func pingOp() error {
	msg, err := common.NewMessage(common.MsgTPing, nil)
	if err != nil {
		return err
	}
	return await(msg, common.MsgTPong)
}

// checkOp runs one npm package check transaction
func checkOp() error {
	msg, err := common.NewMessage(common.MsgTCheckNpmPackageRequest, common.NpmPackagePayload{NpmID: "perf"})
	if err != nil {
		return err
	}
	return await(msg, common.MsgTCheckNpmPackageResponse)
}

// logOp sends one Log message, the backend does not reply
func logOp() error {
	msg, err := common.NewMessage(common.MsgTLog, common.LogPayload{Level: "debug", Message: "perf"})
	if err != nil {
		return err
	}
	msgSender.Send(msg)
	return nil
}

func await(msg common.Message, expected common.MessageType) error {
	ctx, cancel := context.WithTimeout(context.Background(), perfWait)
	defer cancel()
	_, err := msgSender.Transaction(msg, expected).Wait(ctx)
	return err
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// printLatency prints the round trip distribution recorded by timer
func printLatency(test string, timer gometrics.Timer) {
	if timer.Count() == 0 {
		return
	}
	ps := timer.Percentiles([]float64{0.5, 0.95, 0.99})
	fmt.Printf("%-20sp50 %s\tp95 %s\tp99 %s\tmax %s\t(%d samples)\n",
		test,
		time.Duration(ps[0]),
		time.Duration(ps[1]),
		time.Duration(ps[2]),
		time.Duration(timer.Max()),
		timer.Count(),
	)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	config := util.GetClientConfig()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"P50Ns", "P99Ns", "Endpoint", "TimeoutSec", "RetryCount",
		"Transport", "Threads",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, test := range perfTests {
		result := results[test.name]

		var nsPerOp, opsPerSec float64
		skipped := "true"
		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		var p50, p99 float64
		if timer, ok := perfRegistry.Get(test.name).(gometrics.Timer); ok && timer.Count() > 0 {
			ps := timer.Percentiles([]float64{0.5, 0.99})
			p50, p99 = ps[0], ps[1]
		}

		row := []string{
			test.name,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			fmt.Sprintf("%.0f", p50),
			fmt.Sprintf("%.0f", p99),
			config.Endpoint,
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.RetryCount),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %v", err)
		}
	}

	return nil
}
