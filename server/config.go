// Copyright (C) 2025 Thinline Dynamic Solutions
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"

	"gopkg.in/ini.v1"
)

const (
	DbTypePostgresql string = "postgresql"
)

type Config struct {
	BaseDir    string
	ConfigFile string
	Listen     string

	DbType     string
	DbHost     string
	DbPort     uint
	DbName     string
	DbUsername string
	DbPassword string

	ApiKey     string
	ApiBaseUrl string
	ApiModel   string

	MaxFileSizeMB        float64
	ChunkDuration        float64
	ChunkOverlap         float64
	ChunkWorkers         int
	SessionIdleSec       int
	DataDir              string
	EnableVoiceDetection bool
	EnableDebugLog       bool
	PasswordHash         string // bcrypt hash of the upload API password

	daemon      *Daemon
	setPassword bool
}

func NewConfig() *Config {
	const (
		defaultConfigFile       = "transcriber.ini"
		defaultDbType           = DbTypePostgresql
		defaultDbHost           = "localhost"
		defaultDbPortPostgreSql = uint(5432)
		defaultListen           = ":3000"
	)

	var (
		config        = &Config{}
		configSave    = flag.Bool("config_save", false, fmt.Sprintf("save configuration to %s", defaultConfigFile))
		serviceAction = flag.String("service", "", "service command, one of start, stop, restart, install, uninstall")
		setPassword   = flag.Bool("set_password", false, "prompt for a new upload API password and save it")
		version       = flag.Bool("version", false, "show application version")
	)

	if exe, err := os.Executable(); err == nil {
		if !regexp.MustCompile(`go-build[0-9]+`).Match([]byte(exe)) {
			config.BaseDir = filepath.Dir(exe)
			if !config.isBaseDirWritable() {
				if h, err := os.UserHomeDir(); err == nil {
					config.BaseDir = filepath.Join(h, "Transcriber")
					if _, err := os.Stat(config.BaseDir); os.IsNotExist(err) {
						os.MkdirAll(config.BaseDir, 0770)
					}
				}
			}
		}
	}

	flag.StringVar(&config.BaseDir, "base_dir", config.BaseDir, "base directory where all data will be written")
	flag.StringVar(&config.ConfigFile, "config", defaultConfigFile, "server config file")
	flag.StringVar(&config.Listen, "listen", defaultListen, "listening address")
	flag.StringVar(&config.DbHost, "db_host", defaultDbHost, "database host ip or hostname")
	flag.StringVar(&config.DbName, "db_name", "", "database name (empty disables the transcript archive)")
	flag.StringVar(&config.DbPassword, "db_pass", "", "database password")
	flag.UintVar(&config.DbPort, "db_port", defaultDbPortPostgreSql, "database host port")
	flag.StringVar(&config.DbType, "db_type", defaultDbType, "database type (postgresql)")
	flag.StringVar(&config.DbUsername, "db_user", "", "database user name")
	flag.StringVar(&config.ApiKey, "api_key", "", "transcription provider api key")
	flag.StringVar(&config.ApiBaseUrl, "api_base_url", defaultApiBaseUrl, "transcription provider base url")
	flag.StringVar(&config.ApiModel, "api_model", defaultApiModel, "transcription model")
	flag.Float64Var(&config.MaxFileSizeMB, "max_file_size", defaultMaxFileSizeMB, "provider upload size limit in MB")
	flag.Parse()

	config.ChunkDuration = defaultChunkDuration
	config.ChunkOverlap = defaultChunkOverlap
	config.ChunkWorkers = defaultChunkWorkers
	config.SessionIdleSec = defaultSessionIdleSec
	config.DataDir = defaultDataDir
	config.EnableVoiceDetection = true

	if !config.isBaseDirWritable() {
		log.Fatalf("no write permissions in %s", config.BaseDir)
	}

	switch {
	case *configSave:
		if err := config.saveConfig(); err == nil {
			fmt.Printf("%s file created\n", config.ConfigFile)
			os.Exit(0)
		} else {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(-1)
		}

	case *version:
		fmt.Println(Version)
		os.Exit(0)

	default:
		config.loadConfigFile()

		if config.DbType != DbTypePostgresql {
			fmt.Printf("unknown database type %s (only postgresql is supported)\n", config.DbType)
			return nil
		}
	}

	config.setPassword = *setPassword

	if *serviceAction != "" {
		daemon, err := NewDaemon()
		if err != nil {
			log.Printf("ERROR: Failed to initialize daemon service: %v", err)
			log.Printf("Daemon operations are not available. Exiting.")
			os.Exit(1)
		}
		config.daemon = daemon.Control(*serviceAction)
	}

	return config
}

func (config *Config) loadConfigFile() {
	cfg, err := ini.Load(config.GetConfigFilePath())
	if err != nil {
		return
	}

	section := cfg.Section("")

	if v := section.Key("listen").String(); len(v) > 0 {
		config.Listen = v
	}

	if v := section.Key("db_host").String(); len(v) > 0 {
		config.DbHost = v
	}

	if v := section.Key("db_name").String(); len(v) > 0 {
		config.DbName = v
	}

	if v := section.Key("db_pass").String(); len(v) > 0 {
		config.DbPassword = v
	}

	if v := section.Key("db_type").String(); len(v) > 0 {
		config.DbType = v
	}

	if v, err := section.Key("db_port").Uint(); err == nil {
		config.DbPort = v
	}

	if v := section.Key("db_user").String(); len(v) > 0 {
		config.DbUsername = v
	}

	if v := section.Key("api_key").String(); len(v) > 0 {
		config.ApiKey = v
	}

	if v := section.Key("api_base_url").String(); len(v) > 0 {
		config.ApiBaseUrl = v
	}

	if v := section.Key("api_model").String(); len(v) > 0 {
		config.ApiModel = v
	}

	if v, err := section.Key("max_file_size").Float64(); err == nil && v > 0 {
		config.MaxFileSizeMB = v
	}

	if v, err := section.Key("chunk_duration").Float64(); err == nil && v > 0 {
		config.ChunkDuration = v
	}

	if v, err := section.Key("chunk_overlap").Float64(); err == nil && v >= 0 {
		config.ChunkOverlap = v
	}

	if v, err := section.Key("chunk_workers").Int(); err == nil && v > 0 {
		config.ChunkWorkers = v
	}

	if v, err := section.Key("session_idle_sec").Int(); err == nil && v >= 0 {
		config.SessionIdleSec = v
	}

	if v := section.Key("data_dir").String(); len(v) > 0 {
		config.DataDir = v
	}

	if v, err := section.Key("voice_detection").Bool(); err == nil {
		config.EnableVoiceDetection = v
	}

	if v, err := section.Key("enable_debug_log").Bool(); err == nil {
		config.EnableDebugLog = v
	}

	if v := section.Key("password_hash").String(); len(v) > 0 {
		config.PasswordHash = v
	}
}

func (config *Config) GetConfigFilePath() string {
	return config.GetPath(config.ConfigFile)
}

func (config *Config) GetDataDirPath() string {
	return config.GetPath(config.DataDir)
}

func (config *Config) GetPath(p string) string {
	if path.IsAbs(p) {
		return p
	}
	return filepath.Join(config.BaseDir, p)
}

// MaxFileSizeBytes returns the provider upload limit in bytes
func (config *Config) MaxFileSizeBytes() int64 {
	return int64(config.MaxFileSizeMB * 1024 * 1024)
}

// SetPasswordHash updates the password_hash setting in the INI file
func (config *Config) SetPasswordHash(hash string) error {
	configPath := config.GetConfigFilePath()

	cfg, err := ini.Load(configPath)
	if err != nil {
		cfg = ini.Empty()
	}

	cfg.Section("").Key("password_hash").SetValue(hash)

	if err := cfg.SaveTo(configPath); err != nil {
		return fmt.Errorf("failed to save config file: %v", err)
	}

	config.PasswordHash = hash

	return nil
}

func (config *Config) isBaseDirWritable() bool {
	if f, err := os.CreateTemp(config.BaseDir, ".tmp*"); err == nil {
		f.Close()
		os.Remove(f.Name())
		return true
	}
	return false
}

func (config *Config) saveConfig() error {
	lines := []string{}

	if config.Listen != "" {
		lines = append(lines, fmt.Sprintf("listen = %s", config.Listen))
	}

	if config.DbHost != "" {
		lines = append(lines, fmt.Sprintf("db_host = %s", config.DbHost))
	}

	if config.DbName != "" {
		lines = append(lines, fmt.Sprintf("db_name = %s", config.DbName))
	}

	if config.DbPassword != "" {
		lines = append(lines, fmt.Sprintf("db_pass = %s", config.DbPassword))
	}

	if config.DbPort > 0 {
		lines = append(lines, fmt.Sprintf("db_port = %s", strconv.Itoa(int(config.DbPort))))
	}

	if config.DbType != "" {
		lines = append(lines, fmt.Sprintf("db_type = %s", config.DbType))
	}

	if config.DbUsername != "" {
		lines = append(lines, fmt.Sprintf("db_user = %s", config.DbUsername))
	}

	if config.ApiKey != "" {
		lines = append(lines, fmt.Sprintf("api_key = %s", config.ApiKey))
	}

	if config.ApiBaseUrl != "" {
		lines = append(lines, fmt.Sprintf("api_base_url = %s", config.ApiBaseUrl))
	}

	if config.ApiModel != "" {
		lines = append(lines, fmt.Sprintf("api_model = %s", config.ApiModel))
	}

	lines = append(lines, fmt.Sprintf("max_file_size = %g", config.MaxFileSizeMB))
	lines = append(lines, fmt.Sprintf("chunk_duration = %g", config.ChunkDuration))
	lines = append(lines, fmt.Sprintf("chunk_overlap = %g", config.ChunkOverlap))
	lines = append(lines, fmt.Sprintf("chunk_workers = %d", config.ChunkWorkers))
	lines = append(lines, fmt.Sprintf("session_idle_sec = %d", config.SessionIdleSec))
	lines = append(lines, fmt.Sprintf("data_dir = %s", config.DataDir))
	lines = append(lines, fmt.Sprintf("voice_detection = %t", config.EnableVoiceDetection))

	if config.EnableDebugLog {
		lines = append(lines, "enable_debug_log = true")
	}

	if config.PasswordHash != "" {
		lines = append(lines, fmt.Sprintf("password_hash = %s", config.PasswordHash))
	}

	file, err := os.Create(config.GetConfigFilePath())
	if err != nil {
		return err
	}

	for _, line := range lines {
		_, err := file.WriteString(line + "\n")
		if err != nil {
			return err
		}
	}

	return file.Close()
}
