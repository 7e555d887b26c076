package service

import (
	"fmt"
	"strings"

	"github.com/truemediaorg/mentionbot/model"
)

const DefaultSystemPrompt = `You are a helpful assistant on Bilibili.
Respond naturally in Chinese to comments that @mention the user.
Keep your responses concise and friendly.`

// BuildPrompt renders the user turn sent to the model for one mention.
func BuildPrompt(req model.GenerationRequest) string {
	parts := []string{
		fmt.Sprintf("用户 @%s 在B站评论中@提到了你。", req.AuthorName),
		fmt.Sprintf("评论内容: %s", req.Text),
	}
	if req.Context.SubjectTitle != "" {
		parts = append(parts, fmt.Sprintf("视频标题: %s", req.Context.SubjectTitle))
	}
	if req.Context.SubjectDescription != "" {
		parts = append(parts, fmt.Sprintf("视频简介: %s", req.Context.SubjectDescription))
	}
	if req.Context.RootText != "" {
		parts = append(parts, fmt.Sprintf("楼主评论: %s", req.Context.RootText))
	}
	if req.Context.ParentText != "" {
		parts = append(parts, fmt.Sprintf("被回复的评论: %s", req.Context.ParentText))
	}
	parts = append(parts, "请生成一个简短友好的回复（不超过100字），表达感谢并适当回应。")
	return strings.Join(parts, "\n")
}
