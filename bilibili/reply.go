package bilibili

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const replyAddPath = "/x/v2/reply/add"

// Response codes of the reply endpoint
const (
	CodeOK                = 0
	CodeNotLoggedIn       = -101
	CodeAccountDisabled   = -102
	CodeRateLimited       = -104
	CodeRequestBlocked    = -412
	CodeCommentDeleted    = 12002
	CodeReplyNotPermitted = 12030
)

type ReplyRequest struct {
	SubjectID    int64
	BusinessType int
	Message      string
	Root         int64
	Parent       int64
}

type ReplyData struct {
	RpID         int64  `json:"rpid"`
	RpIDStr      string `json:"rpid_str"`
	SuccessToast string `json:"success_toast"`
}

// AddReply posts a reply. Non-zero response codes are returned in the
// envelope rather than as errors; only transport failures are errors.
func (c *Client) AddReply(ctx context.Context, reply ReplyRequest) (*Response[ReplyData], error) {
	form := url.Values{}
	form.Set("message", reply.Message)
	form.Set("type", strconv.Itoa(reply.BusinessType))
	form.Set("oid", strconv.FormatInt(reply.SubjectID, 10))
	form.Set("root", strconv.FormatInt(reply.Root, 10))
	form.Set("parent", strconv.FormatInt(reply.Parent, 10))
	form.Set("csrf", c.credentials.BiliJct)

	req, err := c.newRequest(ctx, http.MethodPost, replyAddPath, nil, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var envelope Response[ReplyData]
	if err := c.do(req, &envelope); err != nil {
		return nil, err
	}
	return &envelope, nil
}
