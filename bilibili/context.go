package bilibili

import (
	"context"
	"net/url"
	"strconv"
)

const (
	videoViewPath  = "/x/web-interface/view"
	replyListPath  = "/x/v2/reply"
	replyTreePath  = "/x/v2/reply/reply"
	navigationPath = "/x/web-interface/nav"

	// comment area type of a video
	videoCommentType = "1"
)

type VideoInfo struct {
	Title string `json:"title"`
	Desc  string `json:"desc"`
}

type CommentContent struct {
	Message string `json:"message"`
}

type CommentMember struct {
	Uname string `json:"uname"`
}

type Comment struct {
	RpID    int64          `json:"rpid"`
	RpIDStr string         `json:"rpid_str"`
	Content CommentContent `json:"content"`
	Member  CommentMember  `json:"member"`
}

type commentPage struct {
	Replies []Comment `json:"replies"`
}

type NavInfo struct {
	IsLogin bool   `json:"isLogin"`
	Mid     int64  `json:"mid"`
	Uname   string `json:"uname"`
}

func (c *Client) VideoInfo(ctx context.Context, aid int64) (*VideoInfo, error) {
	query := url.Values{}
	query.Set("aid", strconv.FormatInt(aid, 10))
	return getJSON[VideoInfo](ctx, c, videoViewPath, query)
}

// RootComment looks up a top-level comment of a video.
func (c *Client) RootComment(ctx context.Context, oid int64, root int64) (*Comment, error) {
	page, err := getJSON[commentPage](ctx, c, replyListPath, commentQuery(oid, root, 1))
	if err != nil {
		return nil, err
	}
	if len(page.Replies) == 0 {
		return nil, nil
	}
	return &page.Replies[0], nil
}

// ThreadComment finds a comment by id within the first page of a reply thread.
func (c *Client) ThreadComment(ctx context.Context, oid int64, root int64, target int64) (*Comment, error) {
	page, err := getJSON[commentPage](ctx, c, replyTreePath, commentQuery(oid, root, 20))
	if err != nil {
		return nil, err
	}
	targetStr := strconv.FormatInt(target, 10)
	for i := range page.Replies {
		if page.Replies[i].RpID == target || page.Replies[i].RpIDStr == targetStr {
			return &page.Replies[i], nil
		}
	}
	return nil, nil
}

func (c *Client) Nav(ctx context.Context) (*NavInfo, error) {
	return getJSON[NavInfo](ctx, c, navigationPath, nil)
}

func commentQuery(oid int64, root int64, pageSize int) url.Values {
	query := url.Values{}
	query.Set("oid", strconv.FormatInt(oid, 10))
	query.Set("type", videoCommentType)
	query.Set("root", strconv.FormatInt(root, 10))
	query.Set("ps", strconv.Itoa(pageSize))
	query.Set("pn", "1")
	return query
}
