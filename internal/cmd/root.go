package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "riskmap",
	Short: "Earthquake risk data pipeline for Istanbul and Ankara",
	Long: `riskmap joins neighborhood earthquake-risk tables to boundary polygons,
classifies them for choropleth maps and frames them with bounding boxes.

It serves the joined data over a JSON API, builds per-year snapshots into CSV
files or SQLite archives, and inspects archives that were built earlier.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("data-source", ".", "Data source: a directory or an http(s) origin")
	rootCmd.PersistentFlags().String("base-path", "", "Sub-path the data is published under (e.g. /risk-map/)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose logging")

	mustBind(rootCmd, "data.source", "data-source")
	mustBind(rootCmd, "data.base_path", "base-path")
	mustBind(rootCmd, "verbose", "verbose")

	setDefaults(viper.GetViper())
}

// mustBind binds a flag of c (local or persistent) to a viper key.
func mustBind(c *cobra.Command, key, name string) {
	flag := c.Flags().Lookup(name)
	if flag == nil {
		flag = c.PersistentFlags().Lookup(name)
	}
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag %s: %v", name, err))
	}
}

func initConfig() {
	// A missing .env is the normal case outside development.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("RISKMAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
