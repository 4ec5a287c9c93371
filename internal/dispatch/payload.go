package dispatch

import "net/url"

// CommandPayload is the parsed form body of a slash command request.
// https://api.slack.com/interactivity/slash-commands
type CommandPayload struct {
	Command     string
	Text        string
	TeamID      string
	TeamDomain  string
	ChannelID   string
	ChannelName string
	UserID      string
	UserName    string
	ResponseURL string
	TriggerID   string
	APIAppID    string
}

// ParseCommandPayload maps slash-command form fields into a CommandPayload.
func ParseCommandPayload(form url.Values) *CommandPayload {
	return &CommandPayload{
		Command:     form.Get("command"),
		Text:        form.Get("text"),
		TeamID:      form.Get("team_id"),
		TeamDomain:  form.Get("team_domain"),
		ChannelID:   form.Get("channel_id"),
		ChannelName: form.Get("channel_name"),
		UserID:      form.Get("user_id"),
		UserName:    form.Get("user_name"),
		ResponseURL: form.Get("response_url"),
		TriggerID:   form.Get("trigger_id"),
		APIAppID:    form.Get("api_app_id"),
	}
}
