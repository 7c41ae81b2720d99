// Package domain models fire and rescue dispatch alarms.
//
// # Sources
//
// Alarms arrive on three channels, each with its own wire format:
//
//	pager  fixed "*"-delimited telegram from the serial pager receiver
//	       (latin1, with 7-bit substitutes for umlauts, see [DecodePager])
//	xml    attachment of the dispatch center's alarm mail, root element <daten>
//	json   flat object pushed by the Alamos websocket feed
//
// Each parser produces an [Alarm]. The record is filled in one shot and is
// not shared with other goroutines while it is being built.
//
// Pager telegram layout:
//
//	16-12-17 18:55:10 LG Reichswalde Gebäudesteuerung #K01;N5174110E0608130; *57274*H1 Hilfeleistung*
//	<remark>*<city>*<subdivision>*<street>*<house>*<plan>*<hint>
//
// The coordinate token is cut out before the grammar is applied. Telegrams
// that do not match keep their text in [Alarm.FallbackText] so they can still
// be shown. A coordinate token containing "*" would break this; the dispatch
// encoder never produces one.
//
// # Identity and merging
//
// The same incident usually arrives twice or three times: first the pager
// telegram, seconds later the mail and the websocket message. Tracking numbers
// carry source-specific prefixes, so [Alarm.Matches] compares only the last
// five characters. [Alarm.Merge] fills gaps in the active record:
//
//   - the longer tracking number wins
//   - empty text fields are adopted, differing values keep the first writer
//     and are logged as conflicts
//   - time and coordinates stay with the first record
//   - source kinds and resources are united
//
// # Views
//
// [Alarm.Title], [Alarm.Address], [Alarm.Location], [Alarm.SpokenText],
// [Alarm.GroupedUnits] and [Alarm.AlertedUnits] render the record for the
// display, the report and the speech output.
//
// # Test alarms
//
// Tracking numbers below 1160000000 belong to the dispatch center's test
// series, see [Alarm.IsTest].
package domain
