package bilibili

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strconv"
)

const mentionFeedPath = "/x/msgfeed/at"

// FlexString accepts either a JSON string or a JSON number. The mention feed
// reports item types in both forms.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

type FeedUser struct {
	Mid      int64  `json:"mid"`
	Nickname string `json:"nickname"`
}

type AtDetail struct {
	Mid      int64  `json:"mid"`
	Nickname string `json:"nickname"`
}

type FeedItemBody struct {
	Type            FlexString `json:"type"`
	SubjectID       int64      `json:"subject_id"`
	RootID          int64      `json:"root_id"`
	TargetID        int64      `json:"target_id"`
	SourceContent   string     `json:"source_content"`
	Title           string     `json:"title"`
	Desc            string     `json:"desc"`
	HideReplyButton bool       `json:"hide_reply_button"`
	AtDetails       []AtDetail `json:"at_details"`
}

type FeedItem struct {
	ID     int64        `json:"id"`
	User   FeedUser     `json:"user"`
	Item   FeedItemBody `json:"item"`
	AtTime int64        `json:"at_time"`
}

type feedCursor struct {
	IsEnd  bool  `json:"is_end"`
	Cursor int64 `json:"cursor"`
}

type feedPage struct {
	Cursor feedCursor `json:"cursor"`
	Items  []FeedItem `json:"items"`
}

// FetchMentions returns one page of the mention feed and the cursor for the
// next page. A next cursor of 0 means there are no further pages.
func (c *Client) FetchMentions(ctx context.Context, cursor int64, size int) ([]FeedItem, int64, error) {
	query := url.Values{}
	query.Set("type", "at")
	query.Set("cursor", strconv.FormatInt(cursor, 10))
	query.Set("size", strconv.Itoa(size))

	page, err := getJSON[feedPage](ctx, c, mentionFeedPath, query)
	if err != nil {
		return nil, 0, err
	}
	next := page.Cursor.Cursor
	if page.Cursor.IsEnd {
		next = 0
	}
	return page.Items, next, nil
}
