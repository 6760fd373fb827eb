// Package contracts holds payloads recorded from the Instagram private API
// and the Telegram Bot API. Client tests replay them through httptest
// servers so parsing stays pinned to what the services actually send.
package contracts

import "fmt"

// Instagram login (POST /api/v1/accounts/login/).
const (
	// InstagramAuthorization is the ig-set-authorization header of a
	// successful login.
	InstagramAuthorization = "Bearer IGT:2:eyJkc191c2VyX2lkIjoiNDIiLCJzZXNzaW9uaWQiOiI0MiUzQWFiYyJ9"

	InstagramLoginContract = `{
  "logged_in_user": {
    "pk": 42,
    "pk_id": "42",
    "username": "archivist",
    "full_name": "Story Archivist",
    "is_private": true
  },
  "session_flush_nonce": null,
  "status": "ok"
}`

	InstagramBadPasswordContract = `{
  "message": "The password you entered is incorrect. Please try again.",
  "invalid_credentials": true,
  "error_title": "Incorrect Password",
  "buttons": [{"title": "Try Again", "action": "dismiss"}],
  "status": "fail",
  "error_type": "bad_password"
}`

	InstagramChallengeContract = `{
  "message": "challenge_required",
  "challenge": {
    "url": "https://i.instagram.com/challenge/42/AbCdEfGh/",
    "api_path": "/challenge/42/AbCdEfGh/",
    "hide_webview_header": true,
    "lock": true,
    "logout": false,
    "native_flow": true
  },
  "status": "fail",
  "error_type": "checkpoint_challenge_required"
}`

	InstagramRateLimitContract = `{
  "message": "Please wait a few minutes before you try again.",
  "require_login": true,
  "status": "fail"
}`
)

// Instagram story feed (GET /api/v1/feed/user/{id}/story/).
const (
	InstagramEmptyReelContract = `{"broadcast": null, "reel": null, "status": "ok"}`

	// InstagramPhotoPK and InstagramVideoPK are the items of
	// InstagramStoryFeed, in feed order.
	InstagramPhotoPK = "3215550000000000001"
	InstagramVideoPK = "3215550000000000002"

	instagramStoryFeedTemplate = `{
  "reel": {
    "id": 100,
    "latest_reel_media": 1760860800,
    "media_count": 2,
    "user": {"pk": 100, "username": "alice"},
    "items": [
      {
        "taken_at": 1760857200,
        "pk": 3215550000000000001,
        "id": "3215550000000000001_100",
        "media_type": 1,
        "image_versions2": {
          "candidates": [
            {"width": 1080, "height": 1920, "url": "%[1]s/v/t51.2885-15/photo_1080.jpg?stp=dst-jpg&_nc_ht=scontent"},
            {"width": 720, "height": 1280, "url": "%[1]s/v/t51.2885-15/photo_720.jpg?stp=dst-jpg"}
          ]
        },
        "original_width": 1080,
        "original_height": 1920
      },
      {
        "taken_at": 1760860800,
        "pk": "3215550000000000002",
        "id": "3215550000000000002_100",
        "media_type": 2,
        "image_versions2": {
          "candidates": [
            {"width": 1080, "height": 1920, "url": "%[1]s/v/t51.2885-15/cover_1080.jpg"}
          ]
        },
        "video_versions": [
          {"type": 101, "width": 720, "height": 1280, "url": "%[1]s/o1/v/t16/video_720.mp4?efg=story"},
          {"type": 102, "width": 480, "height": 854, "url": "%[1]s/o1/v/t16/video_480.mp4?efg=story"}
        ],
        "video_duration": 14.2,
        "has_audio": true
      }
    ]
  },
  "status": "ok"
}`
)

// InstagramStoryFeed renders a feed with one photo and one video whose
// media are served under mediaBase.
func InstagramStoryFeed(mediaBase string) string {
	return fmt.Sprintf(instagramStoryFeedTemplate, mediaBase)
}

// Telegram Bot API replies.
const (
	TelegramMessageContract = `{
  "ok": true,
  "result": {
    "message_id": 7,
    "sender_chat": {"id": -1001, "title": "Story Archive", "type": "channel"},
    "chat": {"id": -1001, "title": "Story Archive", "type": "channel"},
    "date": 1760860800,
    "text": "New stories from alice",
    "entities": [{"offset": 17, "length": 5, "type": "bold"}]
  }
}`

	TelegramTooManyRequestsContract = `{
  "ok": false,
  "error_code": 429,
  "description": "Too Many Requests: retry after 35",
  "parameters": {"retry_after": 35}
}`

	TelegramChatNotFoundContract = `{
  "ok": false,
  "error_code": 400,
  "description": "Bad Request: chat not found"
}`
)
