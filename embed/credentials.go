package embed

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	relayerrors "github.com/byteness/embedrelay/errors"
)

// exchangeCredentials assumes the configured role with the caller's token.
func (r *Resolver) exchangeCredentials(ctx context.Context, token string, rc *RequestContext) (Credentials, error) {
	input := &sts.AssumeRoleWithWebIdentityInput{
		RoleArn:          aws.String(rc.RoleARN),
		RoleSessionName:  aws.String(rc.Username),
		WebIdentityToken: aws.String(token),
	}
	if r.config.SessionDuration > 0 {
		input.DurationSeconds = aws.Int32(int32(r.config.SessionDuration.Seconds()))
	}

	out, err := r.sts.AssumeRoleWithWebIdentity(ctx, input)
	if err != nil {
		return Credentials{}, relayerrors.WrapSTSError(err, rc.RoleARN)
	}
	if out.Credentials == nil {
		re := relayerrors.New(relayerrors.KindCredentialExchange, "AssumeRoleWithWebIdentity returned no credentials", nil)
		return Credentials{}, relayerrors.WithContext(re, "role_arn", rc.RoleARN)
	}

	return Credentials{
		AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(out.Credentials.SecretAccessKey),
		SessionToken:    aws.ToString(out.Credentials.SessionToken),
		Expiration:      aws.ToTime(out.Credentials.Expiration),
	}, nil
}
