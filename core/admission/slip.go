package admission

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

const slipContentType = "application/pdf"

// SlipFilename is the download name of a roll number slip.
func SlipFilename(rollNo string) string {
	return "RollSlip_" + rollNo + ".pdf"
}

// generateSlip renders, stores and records the slip of a verified application.
// app.ArtifactRef is updated on success.
func (svc *Service) generateSlip(ctx context.Context, app *Application) (*Artifact, error) {
	content, err := svc.slips.Generate(*app)
	if err != nil {
		return nil, errors.Wrap(err, "rendering slip")
	}
	ref, err := svc.files.Save(ctx, "roll_slips/"+SlipFilename(app.RollNumber), content)
	if err != nil {
		return nil, errors.Wrap(err, "storing slip")
	}
	if err = svc.repo.SetArtifactRef(ctx, app.ID, ref); err != nil {
		return nil, errors.Wrap(err, "recording slip reference")
	}
	app.ArtifactRef = ref
	return &Artifact{Filename: SlipFilename(app.RollNumber), ContentType: slipContentType, Content: content}, nil
}

// Slip returns the roll number slip of a verified application.
// A missing or unreadable stored slip is regenerated from the current application fields.
func (svc *Service) Slip(ctx context.Context, app Application) (Artifact, error) {
	if !app.IsVerified() || app.RollNumber == "" {
		return Artifact{}, ErrNotFound
	}

	if app.ArtifactRef != "" {
		content, err := svc.files.Open(ctx, app.ArtifactRef)
		if err == nil {
			return Artifact{Filename: SlipFilename(app.RollNumber), ContentType: slipContentType, Content: content}, nil
		}
		svc.logger.Info(fmt.Sprintf("roll slip of application %d unavailable, regenerating: %v", app.ID, err))
	}

	slip, err := svc.generateSlip(ctx, &app)
	if err != nil {
		svc.observer.SlipFailed()
		return Artifact{}, errors.Wrapf(err, "regenerating roll slip of application %d", app.ID)
	}
	return *slip, nil
}

// SlipForAccount serves the slip of the account's own application.
func (svc *Service) SlipForAccount(ctx context.Context, accountID int) (Artifact, error) {
	app, err := svc.repo.GetByAccount(ctx, accountID)
	if err != nil {
		return Artifact{}, err
	}
	return svc.Slip(ctx, app)
}

// SlipByToken serves a slip to anyone holding the application's secure token.
// Unknown tokens and unverified applications are both reported as ErrNotFound.
func (svc *Service) SlipByToken(ctx context.Context, token string) (Artifact, error) {
	if len(token) != secureTokenLen {
		return Artifact{}, ErrNotFound
	}
	app, err := svc.repo.GetBySecureToken(ctx, token)
	if err != nil {
		return Artifact{}, err
	}
	return svc.Slip(ctx, app)
}

// RepairSlips regenerates the slips of up to limit verified applications that have none.
// It returns how many were repaired.
func (svc *Service) RepairSlips(ctx context.Context, limit int) (int, error) {
	apps, err := svc.repo.QueryMissingArtifacts(ctx, limit)
	if err != nil {
		return 0, errors.Wrap(err, "querying applications missing slips")
	}

	var repaired int
	for i := range apps {
		if err = ctx.Err(); err != nil {
			return repaired, err
		}
		if _, err = svc.generateSlip(ctx, &apps[i]); err != nil {
			svc.observer.SlipFailed()
			svc.logger.Warn(fmt.Sprintf("repairing roll slip of application %d: %v", apps[i].ID, err), err)
			continue
		}
		repaired++
	}
	return repaired, nil
}
