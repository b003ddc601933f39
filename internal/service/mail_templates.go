package service

import (
	"bytes"
	"html/template"
	"time"

	"github.com/repairdesk/repair-service/internal/domain"
	"github.com/repairdesk/repair-service/internal/mail"
)

var ticketMailTemplate = template.Must(template.New("ticket").Parse(`
<h2>{{.Heading}}</h2>
<p>報修單號：{{.Ticket.ID}}</p>
<p>標題：{{.Ticket.Title}}</p>
<p>設備類型：{{or .DeviceType "未指定設備類型"}}</p>
<p>當前狀態：{{.Ticket.Status}}</p>
{{- if .OldStatus}}
<p>原狀態：{{.OldStatus}}</p>
{{- end}}
{{- if .Handler}}
<p>處理人員：{{.Handler}}</p>
{{- end}}
<p>更新時間：{{.UpdatedAt}}</p>
<p>問題描述：{{or .Problem "無問題描述"}}</p>
{{- if .Solution}}
<p>解決方案：{{.Solution}}</p>
{{- end}}
`))

var resetMailTemplate = template.Must(template.New("reset").Parse(`
<h2>重設密碼</h2>
<p>{{.Name}} 您好，</p>
<p>請使用以下驗證碼重設密碼，有效期限至 {{.ExpiresAt}}：</p>
<p><code>{{.Token}}</code></p>
<p>若您未提出此要求，請忽略此郵件。</p>
`))

type ticketMailData struct {
	Heading    string
	Ticket     *domain.RepairTicket
	DeviceType string
	Problem    string
	Solution   string
	OldStatus  domain.TicketStatus
	Handler    string
	UpdatedAt  string
}

func renderTicketMail(heading string, ticket *domain.RepairTicket, oldStatus domain.TicketStatus, handler *domain.User) string {
	data := ticketMailData{
		Heading:    heading,
		Ticket:     ticket,
		DeviceType: stringValue(ticket.DeviceType),
		Problem:    stringValue(ticket.Problem),
		Solution:   stringValue(ticket.Solution),
		OldStatus:  oldStatus,
		UpdatedAt:  ticket.UpdatedAt.Format("2006-01-02 15:04"),
	}
	if handler != nil {
		data.Handler = handler.Name
	}
	var buf bytes.Buffer
	_ = ticketMailTemplate.Execute(&buf, data)
	return buf.String()
}

func ticketCreatedMessage(to string, ticket *domain.RepairTicket) mail.Message {
	return mail.Message{
		To:       []string{to},
		Subject:  "新報修單 - " + ticket.Title,
		HTMLBody: renderTicketMail("新報修單", ticket, "", nil),
	}
}

func statusChangedMessage(to string, ticket *domain.RepairTicket, oldStatus domain.TicketStatus) mail.Message {
	return mail.Message{
		To:       []string{to},
		Subject:  "報修單狀態更新 - #" + ticket.ID,
		HTMLBody: renderTicketMail("報修單狀態更新", ticket, oldStatus, nil),
	}
}

func assignedMessage(to string, ticket *domain.RepairTicket, technician *domain.User) mail.Message {
	return mail.Message{
		To:       []string{to},
		Subject:  "報修單已指派 - #" + ticket.ID,
		HTMLBody: renderTicketMail("您有新的報修單", ticket, "", technician),
	}
}

func passwordResetMessage(user *domain.User, token *domain.PasswordResetToken) mail.Message {
	var buf bytes.Buffer
	_ = resetMailTemplate.Execute(&buf, map[string]string{
		"Name":      user.Name,
		"Token":     token.Token,
		"ExpiresAt": token.ExpiresAt.Format(time.RFC3339),
	})
	return mail.Message{
		To:       []string{stringValue(user.Email)},
		Subject:  "重設密碼",
		HTMLBody: buf.String(),
	}
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
