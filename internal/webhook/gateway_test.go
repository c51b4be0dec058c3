package webhook

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/astro-whatsapp-bot/internal/models"
)

func TestVerifyChallenge(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]string
		want   Challenge
	}{
		{
			name:   "matching token and subscribe mode",
			params: map[string]string{ParamMode: "subscribe", ParamVerifyToken: "secret", ParamChallenge: "1158201444"},
			want:   Challenge{Accepted: true, Echo: "1158201444"},
		},
		{
			name:   "wrong token",
			params: map[string]string{ParamMode: "subscribe", ParamVerifyToken: "Secret", ParamChallenge: "x"},
		},
		{
			name:   "token prefix only",
			params: map[string]string{ParamMode: "subscribe", ParamVerifyToken: "secre", ParamChallenge: "x"},
		},
		{
			name:   "wrong mode",
			params: map[string]string{ParamMode: "unsubscribe", ParamVerifyToken: "secret", ParamChallenge: "x"},
		},
		{
			name:   "missing mode",
			params: map[string]string{ParamVerifyToken: "secret", ParamChallenge: "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerifyChallenge(tt.params, "secret"))
		})
	}
}

func TestVerifyChallengeEmptyExpectedToken(t *testing.T) {
	got := VerifyChallenge(map[string]string{ParamMode: "subscribe", ParamVerifyToken: ""}, "")
	assert.False(t, got.Accepted)
}

func TestValidateSignatureUsesRawBytes(t *testing.T) {
	raw := []byte("{\n  \"object\": \"whatsapp_business_account\",\n  \"entry\": []\n}")
	sig := SignatureFor(raw, "app-secret")

	assert.True(t, ValidateSignature(raw, sig, "app-secret"))

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &parsed))
	reencoded, err := json.Marshal(parsed)
	require.NoError(t, err)
	require.NotEqual(t, string(raw), string(reencoded))

	assert.False(t, ValidateSignature(reencoded, sig, "app-secret"))
}

func TestVerifySignatureErrors(t *testing.T) {
	body := []byte(`{"entry":[]}`)

	assert.ErrorIs(t, VerifySignature(body, "", "secret"), ErrMissingSignature)
	assert.ErrorIs(t, VerifySignature(body, "sha1=abc", "secret"), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature(body, "sha256=zz", "secret"), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature(body, SignatureFor(body, "other"), "secret"), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature(body, SignatureFor(body, "secret"), ""), ErrInvalidSignature)
	assert.NoError(t, VerifySignature(body, SignatureFor(body, "secret"), "secret"))
}

func TestParseEntriesRejectsMissingEntry(t *testing.T) {
	_, err := ParseEntries([]byte(`{"foo":"bar"}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = ParseEntries([]byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = ParseEntries([]byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestParseEntriesEmptyObjectIsProbe(t *testing.T) {
	events, err := ParseEntries([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestParseEntriesSkipsChangesWithoutValue(t *testing.T) {
	body := `{"entry":[
		{"changes":[]},
		{"changes":[{"field":"messages"}]},
		{"changes":[{"value":{"messages":[{"id":"wamid.1","from":"919876543210","timestamp":"1700000000","type":"text","text":{"body":"hello"}}]}}]}
	]}`

	events, err := ParseEntries([]byte(body))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "wamid.1", events[0].EventID)
	assert.Equal(t, models.KindText, events[0].Kind)
	assert.Equal(t, "hello", events[0].Text)
	assert.Equal(t, int64(1700000000), events[0].Timestamp.Unix())
}

func TestParseEntriesMessageKinds(t *testing.T) {
	body := `{"object":"whatsapp_business_account","entry":[{"id":"1","changes":[{"field":"messages","value":{
		"contacts":[{"wa_id":"15551234567","profile":{"name":"Maya"}}],
		"messages":[
			{"id":"m1","from":"15551234567","type":"interactive","interactive":{"type":"list_reply","list_reply":{"id":"daily_horoscope","title":"Daily Horoscope"}}},
			{"id":"m2","from":"15551234567","type":"interactive","interactive":{"type":"button_reply","button_reply":{"id":"btn_yes","title":"Yes"}}},
			{"id":"m3","from":"15551234567","type":"button","button":{"payload":"menu","text":"Menu"}},
			{"id":"m4","from":"15551234567","type":"image","image":{"id":"media-1","mime_type":"image/jpeg","caption":"my palm"}},
			{"id":"m5","from":"15551234567","type":"location","location":{"latitude":1,"longitude":2}},
			{"id":"m6","from":"15551234567","type":"system","system":{"body":"changed number"}}
		],
		"statuses":[{"id":"out1","status":"delivered","recipient_id":"15551234567","timestamp":"1700000001"}]
	}}]}]}`

	events, err := ParseEntries([]byte(body))
	require.NoError(t, err)
	require.Len(t, events, 7)

	assert.Equal(t, models.KindInteractive, events[0].Kind)
	assert.Equal(t, models.ListReply, events[0].Interactive.Kind)
	assert.Equal(t, "daily_horoscope", events[0].Interactive.ID)
	assert.Equal(t, "Maya", events[0].ContactName)

	assert.Equal(t, models.ButtonReply, events[1].Interactive.Kind)
	assert.Equal(t, "btn_yes", events[1].Interactive.ID)

	assert.Equal(t, models.KindInteractive, events[2].Kind)
	assert.Equal(t, "menu", events[2].Interactive.ID)

	assert.Equal(t, models.KindMedia, events[3].Kind)
	assert.Equal(t, models.MediaImage, events[3].Media.Kind)
	assert.Equal(t, "my palm", events[3].Media.Caption)

	assert.Equal(t, models.KindUnsupported, events[4].Kind)
	assert.Equal(t, "location", events[4].Text)

	assert.Equal(t, models.KindContactUpdate, events[5].Kind)

	assert.Equal(t, models.KindStatus, events[6].Kind)
	assert.Equal(t, "out1:delivered", events[6].EventID)
	assert.Equal(t, "delivered", events[6].Status.Status)
}

func TestParseEntriesContactOnlyValue(t *testing.T) {
	body := `{"entry":[{"changes":[{"value":{"contacts":[{"wa_id":"15551234567","profile":{"name":"Maya R"}}]}}]}]}`

	events, err := ParseEntries([]byte(body))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.KindContactUpdate, events[0].Kind)
	assert.Equal(t, "Maya R", events[0].ContactName)
}
