// Package notifier delivers reminder texts to chats.
//
// A Dispatcher sends one message per target chat, sequentially, paced by a
// token-bucket limiter so bursts stay under Telegram flood limits. A nil target
// list is a broadcast: the chat set is re-discovered first.
//
// # Dry run
//
// In dry-run mode every message is logged at debug level and nothing else
// happens: no discovery, no network call, no error.
package notifier
