package constants

//============== CACHE KEYS ==============

// Redis key formats. All live in the same database, so prefixes must not collide.
const (
	// revoked_jwt:<jti> -> "1", expires with the token.
	CacheKeyRevokedToken = "revoked_jwt:%s"

	// notification_settings:<userID> -> JSON, no expiry.
	CacheKeyNotificationSettings = "notification_settings:%s"

	// tg_session:<chatID> -> JSON conversation state.
	CacheKeyBotSession = "tg_session:%d"
)
