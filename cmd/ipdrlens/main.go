// Command ipdrlens runs a demonstration investigation over synthetic or
// ingested IPDR data and prints the resulting reports.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dmistry/ipdrlens/pkg/config"
	"github.com/dmistry/ipdrlens/pkg/datagen"
	"github.com/dmistry/ipdrlens/pkg/geoip"
	"github.com/dmistry/ipdrlens/pkg/ingest"
	"github.com/dmistry/ipdrlens/pkg/investigation"
	"github.com/dmistry/ipdrlens/pkg/ipdr"
	"github.com/dmistry/ipdrlens/pkg/logging"
	"github.com/dmistry/ipdrlens/pkg/metrics"
	"github.com/dmistry/ipdrlens/pkg/report"
	"github.com/dmistry/ipdrlens/pkg/store"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML configuration")
		csvPath    = flag.String("csv", "", "IPDR CSV file to ingest (.sz for snappy-compressed)")
		subjectKey = flag.String("subject", "", "subject key to investigate (default: first generated)")
		depth      = flag.Int("depth", 2, "cluster expansion depth")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg = loaded
	}

	logger := logging.NewJSONLogger(os.Stderr, logging.ParseLevel(cfg.LogLevel))
	memStore := store.NewMemoryStore()

	var center ipdr.SubjectKey
	if *csvPath != "" {
		center = loadCSV(memStore, logger, *csvPath)
	} else {
		center = loadSynthetic(memStore)
	}
	if *subjectKey != "" {
		center = ipdr.SubjectKey(*subjectKey)
	}

	clusterOpts, err := cfg.ClusterOptions()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	engine, err := investigation.NewEngine(investigation.Deps{
		Records:        memStore,
		Subjects:       memStore,
		Partners:       memStore,
		Resolver:       geoip.NewTableResolver(cfg.GeoLocations()),
		Logger:         logger,
		Metrics:        metrics.NewRegistry(),
		Config:         cfg.Analysis,
		ClusterOptions: clusterOpts,
	})
	if err != nil {
		log.Fatalf("engine: %v", err)
	}

	ctx := context.Background()

	result, err := engine.Investigate(ctx, center)
	if err != nil {
		log.Fatalf("investigate %s: %v", center, err)
	}
	fmt.Println(report.RenderText(result))

	if result.Suspicion != nil {
		if err := memStore.ApplySuspicion(ctx, *result.Suspicion); err != nil {
			log.Fatalf("apply suspicion: %v", err)
		}
		fmt.Printf("Applied suspicion update for %s: %v\n\n", center, result.Suspicion.Reasons)
	}

	clusterResult, err := engine.AnalyzeCluster(ctx, center, *depth)
	if err != nil {
		log.Fatalf("analyze cluster: %v", err)
	}
	fmt.Println(report.RenderClusterText(clusterResult))
}

// loadSynthetic fills the store with a generated population and returns a
// suspicious subject as the investigation center.
func loadSynthetic(memStore *store.MemoryStore) ipdr.SubjectKey {
	gen := datagen.New(datagen.DefaultOptions())
	subjects, records := gen.Population()
	for _, s := range subjects {
		if err := memStore.PutSubject(s); err != nil {
			log.Fatalf("load subject: %v", err)
		}
	}
	memStore.AddRecords(records...)
	fmt.Printf("Generated %d subjects, %d session records\n\n", len(subjects), len(records))
	return subjects[0].Key
}

// loadCSV ingests a record file, registering a bare profile for every
// subject seen so investigations can proceed.
func loadCSV(memStore *store.MemoryStore, logger logging.Logger, path string) ipdr.SubjectKey {
	parser := ingest.NewParser(logger)
	batch, err := parser.ParseFile(path)
	if err != nil {
		log.Fatalf("ingest %s: %v", path, err)
	}
	fmt.Printf("Ingested batch %s: %d records, %d skipped\n\n", batch.ID, len(batch.Records), batch.Skipped)

	seen := make(map[ipdr.SubjectKey]bool)
	var first ipdr.SubjectKey
	for _, rec := range batch.Records {
		if !seen[rec.SubjectKey] {
			seen[rec.SubjectKey] = true
			if first == "" {
				first = rec.SubjectKey
			}
			if err := memStore.PutSubject(&ipdr.Subject{Key: rec.SubjectKey, Name: "Unknown"}); err != nil {
				log.Fatalf("register subject: %v", err)
			}
		}
	}
	memStore.AddRecords(batch.Records...)
	if first == "" {
		log.Fatal("no valid records in input")
	}
	return first
}
