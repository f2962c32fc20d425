package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/tafsir/data/db/commentary.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/tafsir/data/indices/bleve"
	}
	if cfg.Ingest.BaseURL == "" {
		cfg.Ingest.BaseURL = "https://static.quran.com/tafsir/"
	}
	if cfg.Ingest.AssetsDir == "" {
		cfg.Ingest.AssetsDir = "/usr/local/var/tafsir/assets"
	}
	if cfg.Ingest.TmpDir == "" {
		cfg.Ingest.TmpDir = "/usr/local/var/tafsir/tmp"
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 500
	}
	if cfg.Ingest.ExpectedRecords == 0 {
		cfg.Ingest.ExpectedRecords = 6500
	}
	if cfg.Ingest.WordIndexAsset == "" {
		cfg.Ingest.WordIndexAsset = "quran-words.json"
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".zip", ".json"}
	}
}
