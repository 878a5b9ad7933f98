package client

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/ses/sesiface"
	"github.com/pkg/errors"
)

const sesCharset = "UTF-8"

type SESEmailClient struct {
	ses  sesiface.SESAPI
	from string
}

func NewSESEmailClient(region, from string) (*SESEmailClient, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, errors.Wrap(err, "create aws session")
	}
	return &SESEmailClient{ses: ses.New(sess), from: from}, nil
}

func (c *SESEmailClient) SendEmail(ctx context.Context, to, subject, html string) (string, error) {
	input := &ses.SendEmailInput{
		Destination: &ses.Destination{
			ToAddresses: []*string{aws.String(to)},
		},
		Message: &ses.Message{
			Body: &ses.Body{
				Html: &ses.Content{
					Charset: aws.String(sesCharset),
					Data:    aws.String(html),
				},
			},
			Subject: &ses.Content{
				Charset: aws.String(sesCharset),
				Data:    aws.String(subject),
			},
		},
		Source: aws.String(c.from),
	}

	out, err := c.ses.SendEmailWithContext(ctx, input)
	if err != nil {
		return "", errors.Wrap(err, "ses send failed")
	}
	return aws.StringValue(out.MessageId), nil
}
