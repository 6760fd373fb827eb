package instagram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// storyServer logs in normally and answers every story request with status
// and body.
func storyServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/accounts/login/" {
			loginHandler(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestAC400_InstagramAPI_IgnoresUnexpectedFields(t *testing.T) {
	server := storyServer(t, http.StatusOK, `{
		"reel": {
			"items": [{
				"pk": "1",
				"media_type": 1,
				"image_versions2": {"candidates": [{"url": "https://cdn/1.jpg", "scans_profile": "e15"}]},
				"sticker_interactions": {"polls": []},
				"newFieldFromMeta": "surprise feature!"
			}],
			"reel_type": "user_reel"
		},
		"status": "ok"
	}`)

	stories, err := loggedIn(t, server).UserStories(context.Background(), 100)

	if err != nil {
		t.Fatalf("stories should parse even when Instagram adds new fields, got error: %v", err)
	}
	if len(stories) != 1 || stories[0].PK != "1" || stories[0].ThumbnailURL != "https://cdn/1.jpg" {
		t.Errorf("story should be read despite unexpected fields, got %+v", stories)
	}
}

func TestAC401_InstagramAPI_HandlesEmptyReel(t *testing.T) {
	server := storyServer(t, http.StatusOK, `{"reel": {"items": []}, "status": "ok"}`)

	stories, err := loggedIn(t, server).UserStories(context.Background(), 100)

	if err != nil {
		t.Fatalf("empty reel should not be an error, got: %v", err)
	}
	if stories == nil || len(stories) != 0 {
		t.Errorf("empty reel should yield an empty, non-nil list, got %v", stories)
	}
}

func TestAC402_InstagramAPI_HandlesNullMediaFields(t *testing.T) {
	server := storyServer(t, http.StatusOK, `{
		"reel": {"items": [
			{"pk": "1", "media_type": 2, "image_versions2": null, "video_versions": null},
			{"pk": "2", "media_type": 1}
		]},
		"status": "ok"
	}`)

	stories, err := loggedIn(t, server).UserStories(context.Background(), 100)

	if err != nil {
		t.Fatalf("null media fields should not fail the listing, got: %v", err)
	}
	if len(stories) != 2 {
		t.Fatalf("every item should be listed, got %d", len(stories))
	}
	if stories[0].VideoURL != "" || stories[1].ThumbnailURL != "" {
		t.Errorf("missing media should leave URLs empty, got %+v", stories)
	}
}

func TestAC403_InstagramAPI_ReturnsUserFriendlyErrorOnServerError(t *testing.T) {
	server := storyServer(t, http.StatusServiceUnavailable, "Service temporarily unavailable")

	_, err := loggedIn(t, server).UserStories(context.Background(), 100)

	if err == nil {
		t.Fatal("listing should fail when Instagram is down")
	}
	if !strings.Contains(err.Error(), "Instagram") {
		t.Errorf("error should mention Instagram for clarity, got: %v", err)
	}
}

func TestAC404_InstagramAPI_ReportsExpiredSession(t *testing.T) {
	server := storyServer(t, http.StatusForbidden, `{"message": "login_required", "status": "fail"}`)

	_, err := loggedIn(t, server).UserStories(context.Background(), 100)

	if err == nil || !strings.Contains(strings.ToLower(err.Error()), "log in") {
		t.Errorf("error should tell the user to log in again, got: %v", err)
	}
}

func TestAC405_InstagramAPI_HandlesRateLimit(t *testing.T) {
	server := storyServer(t, http.StatusTooManyRequests, `{"message": "Please wait a few minutes before you try again.", "status": "fail"}`)

	_, err := loggedIn(t, server).UserStories(context.Background(), 100)

	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got: %v", err)
	}
}

func TestAC406_InstagramAPI_HandlesMalformedJSON(t *testing.T) {
	server := storyServer(t, http.StatusOK, `{"reel": json}`)

	_, err := loggedIn(t, server).UserStories(context.Background(), 100)

	if err == nil {
		t.Fatal("malformed response should be an error")
	}
	if strings.Contains(err.Error(), "panic") || strings.Contains(err.Error(), "runtime error") {
		t.Error("error should be handled gracefully, not panic or crash")
	}
}

func TestAC407_InstagramAPI_HandlesPartialResponse(t *testing.T) {
	server := storyServer(t, http.StatusOK, `{"reel": {"items": [{"pk": "1", "media_type": 1, "image_versions2": {"candidates": [{"url": "https://cd`)

	_, err := loggedIn(t, server).UserStories(context.Background(), 100)

	if err == nil {
		t.Fatal("truncated response should be an error")
	}
}

func TestAC408_InstagramAPI_RejectsInvalidIdentifier(t *testing.T) {
	server := storyServer(t, http.StatusOK, `{"reel": {"items": [{"pk": 1.5, "media_type": 1}]}}`)

	_, err := loggedIn(t, server).UserStories(context.Background(), 100)

	if err == nil {
		t.Error("a fractional story id cannot name a file and should be rejected")
	}
}

func TestAC409_InstagramAPI_ReportsMissingIdentifierAsEmpty(t *testing.T) {
	server := storyServer(t, http.StatusOK, `{"reel": {"items": [{"pk": null, "media_type": 1}, {"media_type": 2}]}}`)

	stories, err := loggedIn(t, server).UserStories(context.Background(), 100)

	if err != nil {
		t.Fatalf("items without an id should not fail the whole listing, got: %v", err)
	}
	if len(stories) != 2 || stories[0].PK != "" || stories[1].PK != "" {
		t.Errorf("missing ids should be left empty, not invented, got %+v", stories)
	}
}
