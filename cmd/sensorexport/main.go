package main

import (
	"fmt"
	"os"
	"time"

	"github.com/ademnea/beehive-pipeline/internal/config"
	"github.com/ademnea/beehive-pipeline/internal/models"
	"github.com/ademnea/beehive-pipeline/internal/sensors/repository"
	"github.com/ademnea/beehive-pipeline/internal/sensors/usecase"
	"github.com/ademnea/beehive-pipeline/pkg/db/postgres"
	"github.com/ademnea/beehive-pipeline/pkg/logger"
	"github.com/ademnea/beehive-pipeline/pkg/utils"
	"github.com/spf13/cobra"
)

var (
	configFlag string
	tableFlag  string
	hiveFlag   int
	fromFlag   string
	toFlag     string
	outFlag    string
)

var rootCmd = &cobra.Command{
	Use:   "sensorexport",
	Short: "Export hive sensor readings to CSV",
	Long: `sensorexport reads one hive_* sensor table for a single hive and date range and
writes the rows as CSV with a record,created_at header.

Examples:
  sensorexport --table hive_humidity --hive 1 --from 2025-01-01 --to 2025-03-31 --out hive_humidity_hive1.csv`,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         runExport,
}

func init() {
	rootCmd.Flags().StringVarP(&configFlag, "config", "c", os.Getenv("BEEDETECT_CONFIG"), "Optional YAML config file")
	rootCmd.Flags().StringVar(&tableFlag, "table", "hive_humidity", "Sensor table (hive_humidity, hive_temperatures, ...)")
	rootCmd.Flags().IntVar(&hiveFlag, "hive", 1, "Hive id")
	rootCmd.Flags().StringVar(&fromFlag, "from", "", "Start date, YYYY-MM-DD (inclusive)")
	rootCmd.Flags().StringVar(&toFlag, "to", "", "End date, YYYY-MM-DD (inclusive)")
	rootCmd.Flags().StringVarP(&outFlag, "out", "o", "", "Output CSV file (default <table>_hive<id>.csv)")
	_ = rootCmd.MarkFlagRequired("from")
	_ = rootCmd.MarkFlagRequired("to")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	v, err := config.LoadConfig(configFlag)
	if err != nil {
		return fmt.Errorf("loadConfig: %w", err)
	}
	cfg, err := config.ParseConfig(v)
	if err != nil {
		return fmt.Errorf("parseConfig: %w", err)
	}
	appLogger := logger.NewApiLogger(cfg)
	appLogger.InitLogger()
	defer appLogger.Sync()

	if err := cfg.ValidateExport(ctx); err != nil {
		return err
	}
	query, err := buildQuery()
	if err != nil {
		return err
	}

	db, err := postgres.NewPsqlDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	out := outFlag
	if out == "" {
		out = fmt.Sprintf("%s_hive%d.csv", query.Table, query.HiveID)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	defer f.Close()

	uc := usecase.NewSensorUseCase(repository.NewSensorRepo(db), appLogger)
	if _, err := uc.Export(ctx, query, f); err != nil {
		return err
	}
	return f.Close()
}

// buildQuery makes --to cover the whole day.
func buildQuery() (*models.SensorQuery, error) {
	for _, d := range []string{fromFlag, toFlag} {
		if err := utils.ValidateDate(d); err != nil {
			return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", d, err)
		}
	}
	from, _ := time.Parse("2006-01-02", fromFlag)
	to, _ := time.Parse("2006-01-02", toFlag)
	return &models.SensorQuery{
		Table:  tableFlag,
		HiveID: hiveFlag,
		From:   from,
		To:     to.Add(24*time.Hour - time.Nanosecond),
	}, nil
}
