package runconfig

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".dicomsync"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for dicomsync settings.
const envPrefix = "DICOMSYNC"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// Load loads configuration from env vars, file, and defaults, in that
// precedence order (no command-line flag is bound to a config key). If
// configPath is non-empty, it is
// used as the explicit config file path; otherwise the file is searched
// in the current directory and $HOME. A missing config file is not an
// error; Defaults() values are used.
func Load(configPath string) (*Config, *viper.Viper, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, nil, fmt.Errorf("runconfig: read config: %w", readErr)
		}
	}

	var cfg Config

	if err := viperCfg.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("runconfig: unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("runconfig: validate config: %w", err)
	}

	return &cfg, viperCfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	d := Defaults()

	viperCfg.SetDefault("toolkit", string(d.Toolkit))
	viperCfg.SetDefault("aet_source", d.AETSource)
	viperCfg.SetDefault("aet_dest", d.AETDest)
	viperCfg.SetDefault("pacs_host", d.PACSHost)
	viperCfg.SetDefault("pacs_port", d.PACSPort)
	viperCfg.SetDefault("pacs_rest_host", d.PACSRESTHost)
	viperCfg.SetDefault("batch_size_default", d.BatchSizeDefault)
	viperCfg.SetDefault("allowed_extensions", d.AllowedExtensions)
	viperCfg.SetDefault("restrict_extensions", d.RestrictExtensions)
	viperCfg.SetDefault("include_no_extension", d.IncludeNoExtension)
	viperCfg.SetDefault("collect_size_bytes", d.CollectSizeBytes)
	viperCfg.SetDefault("ts_mode", string(d.TSMode))
	viperCfg.SetDefault("toolF_send_mode", string(d.ToolFSendMode))
	viperCfg.SetDefault("toolF_iuid_update_mode", string(d.ToolFIUIDUpdateMode))
	viperCfg.SetDefault("toolF_use_shell_wrapper", d.ToolFUseShellWrapper)
	viperCfg.SetDefault("toolF_prefer_java_direct", d.ToolFPreferJavaDirect)
}
