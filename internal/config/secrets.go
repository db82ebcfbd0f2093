package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.AI.APIKey)
	redact(&out.Feed.APIKey)
	redact(&out.Executor.KeyPassword)
	redact(&out.Database.DSN)
	redact(&out.Database.Password)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Server.APIKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices and maps so callers cannot mutate the original through the
	// redacted copy.
	if cfg.Engine.Tokens != nil {
		out.Engine.Tokens = append([]string(nil), cfg.Engine.Tokens...)
	}
	if cfg.Optimizer.Networks != nil {
		out.Optimizer.Networks = append([]string(nil), cfg.Optimizer.Networks...)
	}
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)
	}
	if cfg.Notify.Events != nil {
		out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	}
	if cfg.Feed.Endpoints != nil {
		out.Feed.Endpoints = make(map[string]string, len(cfg.Feed.Endpoints))
		for k, v := range cfg.Feed.Endpoints {
			out.Feed.Endpoints[k] = v
		}
	}
	if cfg.Ethereum.RPCURLs != nil {
		out.Ethereum.RPCURLs = make(map[string]string, len(cfg.Ethereum.RPCURLs))
		for k, v := range cfg.Ethereum.RPCURLs {
			out.Ethereum.RPCURLs[k] = v
		}
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
