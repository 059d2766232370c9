// Package tgui provides small Telegram UI helpers:
//   - Inline keyboard builders
//   - Callback data helpers (scope:action:payload)
//   - HTML escaping for Telegram ParseMode="HTML"
package tgui
