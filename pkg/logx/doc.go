// Package logx is tgremind's logging layer on top of zerolog.
//
// Console output is human-readable (colored only on a TTY), file output is
// JSON, and warnings can optionally be mirrored into a Telegram log chat
// under a minimum level and a rate limit.
package logx
