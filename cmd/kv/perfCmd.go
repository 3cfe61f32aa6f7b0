package kv

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/jstore/cmd/util"
	"github.com/ValentinKolb/jstore/lib/store"
	"github.com/ValentinKolb/jstore/rest/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for jstore servers",
		Long:    "Runs parallel document benchmarks against a temporary source. The source is removed afterwards.",
		Args:    cobra.NoArgs,
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfSource         = "__perf"
	perfLargeDocSizeKB = 100
	perfNumThreads     = 10
	perfKeySpread      = 100
	perfSkip           = make([]string, 0)
	perfBenchmarks     = []string{"put", "put-large", "get", "patch", "delete"}
	perfSmallDocument  = store.Document(`{"test":true}`)
	perfPatchDocument  = []byte(`{"counter":1}`)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. put,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-doc-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the document for the put-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "source"
	perfTestCmd.Flags().String(key, "__perf", util.WrapString("Name of the temporary source, it must not exist"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeDocSizeKB = viper.GetInt("large-doc-size")
	perfKeySpread = viper.GetInt("keys")
	perfNumThreads = viper.GetInt("threads")
	perfSource = viper.GetString("source")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if perfKeySpread < 1 {
		return fmt.Errorf("keys must be at least 1")
	}
	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for jstore servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	created, err := restClient.Create(perfSource)
	if err != nil {
		return err
	}
	if !created {
		return fmt.Errorf("source %q already exists, choose another one with --source", perfSource)
	}
	defer func() {
		if _, err := restClient.Remove(perfSource); err != nil {
			log.Printf("error removing source %s: %v\n", perfSource, err)
		}
	}()

	largeDocument := store.Document(fmt.Sprintf(`{"data":%q}`, strings.Repeat("x", perfLargeDocSizeKB*1024)))

	fmt.Println("starting tests...")
	results := make(map[string]testing.BenchmarkResult)
	for _, test := range perfBenchmarks {
		result := testing.Benchmark(func(b *testing.B) {
			if shouldSkip(test) {
				return
			}

			// every benchmark except put-large reads or writes existing keys
			if test != "put" && test != "put-large" {
				for i := 0; i < perfKeySpread; i++ {
					if _, _, err := restClient.Put(perfSource, perfKey(i), perfSmallDocument); err != nil {
						b.Fatalf("(%s) - error preparing key: %v", test, err)
					}
				}
			}

			b.SetParallelism(perfNumThreads)
			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				counter := 0
				for pb.Next() {
					if err := perfOp(test, perfKey(counter), largeDocument); err != nil {
						log.Printf("(%s) - error: %v\n", test, err)
					}
					counter++
				}
			})
		})
		results[test] = result
		printResult(test, result)
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return err
		}
		fmt.Printf("results written to %s\n", csvPath)
	}
	return nil
}

// perfOp runs one operation of the benchmark test
func perfOp(test, k string, largeDocument store.Document) error {
	var err error
	switch test {
	case "put":
		_, _, err = restClient.Put(perfSource, k, perfSmallDocument)
	case "put-large":
		_, _, err = restClient.Put(perfSource, k, largeDocument)
	case "get":
		_, _, err = restClient.Get(perfSource, k)
	case "patch":
		_, err = restClient.MergePatch(perfSource, k, perfPatchDocument)
	case "delete":
		_, _, err = restClient.Delete(perfSource, k)
	}
	return err
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// perfKey returns the numeric test key for i (with wraparound)
func perfKey(i int) string {
	return strconv.Itoa(i % perfKeySpread)
}

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

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Endpoints", "TimeoutSec", "RetryCount",
		"Threads", "LargeDocSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, test := range perfBenchmarks {
		result := results[test]
		var nsPerOp, opsPerSec float64
		skipped := "true"
		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			strings.Join(config.Endpoints, ";"),
			strconv.FormatInt(config.TimeoutSecond, 10),
			strconv.Itoa(config.RetryCount),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeDocSizeKB),
			strconv.Itoa(perfKeySpread),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
