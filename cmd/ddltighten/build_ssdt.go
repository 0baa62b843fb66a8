package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/outsystems-tools/ddl-tightener/internal/dispatch"
	"github.com/outsystems-tools/ddl-tightener/internal/emit"
	"github.com/outsystems-tools/ddl-tightener/internal/pipeline"
)

var buildSsdtCmd = &cobra.Command{
	Use:   "build-ssdt",
	Short: "Produce tightened SSDT DDL, decision logs, and opportunity reports",
	RunE:  runBuildSsdt,
}

var (
	buildSsdtTypeMappingPath   string
	buildSsdtOutputDir         string
	buildSsdtModuleParallelism int
	buildSsdtCacheRoot         string
	buildSsdtCacheRefresh      bool
	buildSsdtCacheTTLHours     int
	buildSsdtLogPath           string
)

var buildSsdtBootstrapFlags *bootstrapFlags
var buildSsdtPolicyFlags *policyFlags

func init() {
	buildSsdtBootstrapFlags = addBootstrapFlags(buildSsdtCmd)
	buildSsdtPolicyFlags = addPolicyFlags(buildSsdtCmd, func() (string, string) {
		cfg := projectConfig()
		return cfg.DefaultPolicyMode, cfg.DefaultRemediation
	})
	buildSsdtCmd.Flags().StringVar(&buildSsdtTypeMappingPath, "type-mapping", "", "path to the type-mapping TOML document (required)")
	buildSsdtCmd.Flags().StringVar(&buildSsdtOutputDir, "output-dir", "out", "directory artifacts are written to")
	buildSsdtCmd.Flags().IntVar(&buildSsdtModuleParallelism, "module-parallelism", 0, "concurrent table writes (default: project config or 1)")
	buildSsdtCmd.Flags().StringVar(&buildSsdtCacheRoot, "cache-root", "", "evidence cache root directory (cache skipped if empty)")
	buildSsdtCmd.Flags().BoolVar(&buildSsdtCacheRefresh, "cache-refresh", false, "force a fresh evidence cache entry even if one is reusable")
	buildSsdtCmd.Flags().IntVar(&buildSsdtCacheTTLHours, "cache-ttl-hours", 0, "evidence cache entry TTL in hours (0: no expiry)")
	buildSsdtCmd.Flags().StringVar(&buildSsdtLogPath, "log-path", "", "path the execution log is also written to")
	_ = buildSsdtCmd.MarkFlagRequired("type-mapping")
}

func runBuildSsdt(cmd *cobra.Command, args []string) error {
	policyOpts, err := buildSsdtPolicyFlags.toOptions()
	if err != nil {
		return err
	}
	typePolicy, err := loadTypeMapping(buildSsdtTypeMappingPath)
	if err != nil {
		return err
	}

	deps, shutdown, err := newDependencies()
	if err != nil {
		return err
	}
	defer shutdown()

	parallelism := buildSsdtModuleParallelism
	if parallelism <= 0 {
		parallelism = projectConfig().DefaultParallelism
	}

	var cacheOpts *pipeline.CacheOptions
	if buildSsdtCacheRoot != "" {
		cacheOpts = &pipeline.CacheOptions{Root: buildSsdtCacheRoot, Refresh: buildSsdtCacheRefresh}
		if buildSsdtCacheTTLHours > 0 {
			ttl := time.Duration(buildSsdtCacheTTLHours) * time.Hour
			cacheOpts.TTL = &ttl
		}
	}

	req := pipeline.BuildSsdtRequest{
		RequestID:   cmd.CalledAs(),
		Bootstrap:   buildSsdtBootstrapFlags.toRequest(),
		Policy:      policyOpts,
		TypeMapping: typePolicy,
		Emission:    emit.Options{OutputDir: buildSsdtOutputDir, ModuleParallelism: parallelism},
		Cache:       cacheOpts,
		LogPath:     buildSsdtLogPath,
	}

	registry := newRegistry(deps)
	out := registry.Dispatch(cmd.Context(), dispatch.BuildSsdt, req)
	if !out.IsOK() {
		return dispatchErr(out.Errors())
	}
	response, _ := out.Value()
	return printJSON(response)
}
