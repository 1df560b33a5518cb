// Package reminder finds reminder directives in chat descriptions and decides
// when they are due.
//
// A chat description may carry any number of lines of the form
//
//	REMINDER: <date phrase> // <description>[@<ignored>]
//
// Each directive resolves to an event time, and each event time yields two
// trigger windows: a lead window shortly before the event and a pre-day
// window on the evening before. A window is due in the polling tick whose
// half-open interval (last, this] contains it.
package reminder
