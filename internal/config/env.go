package config

import (
	"strconv"
	"strings"
)

// Environment variables understood by ApplyEnv.
const (
	EnvToken  = "API_TOKEN"
	EnvChats  = "CHATS"
	EnvTZ     = "TZ"
	EnvDebug  = "DEBUG"
	EnvDryRun = "DRYRUN"
	EnvSilent = "SILENT"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides cfg with environment variables. Values that are set
// always win over the file. It returns the CHATS entries that were not
// valid integers (they are skipped).
func ApplyEnv(cfg *Config, lookup LookupFunc) (invalidChats []string) {
	if v, ok := lookup(EnvToken); ok && strings.TrimSpace(v) != "" {
		cfg.Telegram.Token = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvChats); ok {
		ids, bad := ParseChatList(v)
		cfg.Telegram.Chats = mergeChats(cfg.Telegram.Chats, ids)
		invalidChats = bad
	}
	if v, ok := lookup(EnvTZ); ok && strings.TrimSpace(v) != "" {
		cfg.Timezone = strings.TrimSpace(v)
	}
	if flag, ok := envFlag(lookup, EnvDebug); ok && flag {
		cfg.Logging.Level = "debug"
	}
	if flag, ok := envFlag(lookup, EnvDryRun); ok {
		cfg.DryRun = flag
	}
	if flag, ok := envFlag(lookup, EnvSilent); ok {
		cfg.Silent = flag
	}
	return invalidChats
}

// envFlag treats any set value as true unless it parses as a false boolean
// ("0", "false", ...).
func envFlag(lookup LookupFunc, key string) (bool, bool) {
	v, ok := lookup(key)
	if !ok {
		return false, false
	}
	if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
		return b, true
	}
	return true, true
}

// ParseChatList parses a comma-separated list of chat ids.
// Entries that are not integers are returned in bad and otherwise ignored.
func ParseChatList(raw string) (ids []int64, bad []string) {
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			bad = append(bad, part)
			continue
		}
		ids = append(ids, id)
	}
	return ids, bad
}

func mergeChats(a, b []int64) []int64 {
	seen := make(map[int64]struct{}, len(a)+len(b))
	out := make([]int64, 0, len(a)+len(b))
	for _, list := range [][]int64{a, b} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
