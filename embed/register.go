package embed

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/quicksight"
	"github.com/aws/aws-sdk-go-v2/service/quicksight/types"

	relayerrors "github.com/byteness/embedrelay/errors"
	"github.com/byteness/embedrelay/logging"
	"github.com/byteness/embedrelay/notification"
)

// registerUser registers the caller as an IAM-federated QuickSight user in
// the identity region. A user that already exists counts as success.
func (r *Resolver) registerUser(ctx context.Context, rc *RequestContext) error {
	client := r.quicksight(rc.Credentials, rc.IdentityRegion)
	input := &quicksight.RegisterUserInput{
		AwsAccountId: aws.String(rc.AccountID),
		Namespace:    aws.String(rc.Namespace),
		IdentityType: types.IdentityTypeIam,
		IamArn:       aws.String(rc.RoleARN),
		SessionName:  aws.String(rc.Username),
		UserRole:     types.UserRole(r.config.UserRole),
	}
	if rc.Email != "" {
		input.Email = aws.String(rc.Email)
	}

	userARN := rc.UserARN()
	alreadyExisted := false

	out, err := client.RegisterUser(ctx, input)
	switch {
	case err == nil:
		if out.User != nil && out.User.Arn != nil {
			userARN = aws.ToString(out.User.Arn)
		}
	case relayerrors.APIErrorCode(err) == relayerrors.AWSCodeResourceExists:
		alreadyExisted = true
	default:
		re := relayerrors.WrapAWSError(err, relayerrors.KindRegistration, "RegisterUser")
		re = relayerrors.WithContext(re, "user", rc.QuickSightUserName())
		r.notify(ctx, rc, notification.EventUserRegistrationFailed, userARN, re)
		return re
	}

	log.Printf("INFO: registered QuickSight user %s in %s (already existed: %v) request=%s",
		rc.QuickSightUserName(), rc.IdentityRegion, alreadyExisted, rc.RequestID)

	r.logger.LogRegistration(logging.RegistrationLogEntry{
		Timestamp:      logging.FormatTimestamp(r.now()),
		RequestID:      rc.RequestID,
		User:           rc.Username,
		Namespace:      rc.Namespace,
		UserRole:       r.config.UserRole,
		IdentityRegion: rc.IdentityRegion,
		UserARN:        userARN,
		AlreadyExisted: alreadyExisted,
	})
	if !alreadyExisted {
		r.notify(ctx, rc, notification.EventUserRegistered, userARN, nil)
	}
	return nil
}

// notify delivers a provisioning event. Delivery failures are logged and
// never fail the resolution.
func (r *Resolver) notify(ctx context.Context, rc *RequestContext, eventType notification.EventType, userARN string, cause error) {
	event := &notification.Event{
		Type:           eventType,
		RequestID:      rc.RequestID,
		User:           rc.Username,
		Email:          rc.Email,
		AccountID:      rc.AccountID,
		Namespace:      rc.Namespace,
		UserRole:       r.config.UserRole,
		IdentityRegion: rc.IdentityRegion,
		UserARN:        userARN,
		Timestamp:      r.now().UTC(),
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	if err := r.notifier.Notify(ctx, event); err != nil {
		log.Printf("WARNING: %s notification failed: %v", eventType, err)
	}
}

// validUserRole reports whether role is a QuickSight role the fallback may grant.
func validUserRole(role string) bool {
	switch types.UserRole(role) {
	case types.UserRoleReader, types.UserRoleAuthor, types.UserRoleAdmin:
		return true
	}
	return false
}

func invalidUserRole(role string) error {
	return fmt.Errorf("invalid user role %q: must be READER, AUTHOR or ADMIN", role)
}
