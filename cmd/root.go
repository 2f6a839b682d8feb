/*
Copyright © 2020 A. Jensen <jensen.aaro@gmail.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ajjensen13/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ivsrefresh",
	Short: "Refreshes end of day implied volatility surfaces into postgres",
	Long: `ivsrefresh deletes a date window of implied volatility surface rows for every
configured symbol, fetches the same window from the provider and loads it back.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml or json); defaults to the mounted config map")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if err := configure(viper.GetViper(), cfgFile); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// configure loads .env, the optional config file and the environment into v.
func configure(v *viper.Viper, file string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("api_key", "IVOL_API_KEY"); err != nil {
		return err
	}

	if file == "" {
		return mergeConfigMap(v)
	}
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %q: %w", file, err)
	}
	return nil
}

var readConfigMap func(name string, v interface{}) error = config.InterfaceJson

// mergeConfigMap loads the mounted config map when there is one.
func mergeConfigMap(v *viper.Viper) error {
	var cm map[string]interface{}
	err := readConfigMap(appConfigName, &cm)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("failed to read config map %q: %w", appConfigName, err)
	}
	return v.MergeConfigMap(cm)
}
