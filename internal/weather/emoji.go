package weather

const (
	EmojiClear        = "☀️"
	EmojiPartlyCloudy = "⛅️"
	EmojiFog          = "🌫️"
	EmojiRain         = "🌧️"
	EmojiSnow         = "❄️"
	EmojiThunderstorm = "⛈️"
)

// Emoji maps a WMO weather code to the widget's emoji taxonomy.
// Unknown codes fall back to clear sky.
func Emoji(code int) string {
	switch {
	case code == 0:
		return EmojiClear
	case code >= 1 && code <= 3:
		return EmojiPartlyCloudy
	case code >= 45 && code <= 48:
		return EmojiFog
	case code >= 51 && code <= 67:
		return EmojiRain
	case code >= 71 && code <= 77:
		return EmojiSnow
	case code >= 80 && code <= 99:
		return EmojiThunderstorm
	default:
		return EmojiClear
	}
}
