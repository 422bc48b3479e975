package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/donor-registry/internal/model"
	"github.com/iliyamo/donor-registry/internal/utils"
)

const pictureField = "picture"

// Pictures stores donor profile pictures in a public bucket.
type Pictures struct {
	Store    ObjectStore
	Bucket   string
	MaxBytes int64
}

// replace uploads the multipart picture of c for donor d, points the
// donor at the new public URL and removes the previous object.
func (p Pictures) replace(c echo.Context, donors DonorStore, d model.Donor) (*model.Donor, error) {
	fh, err := c.FormFile(pictureField)
	if err != nil {
		return nil, badRequest(c, "Failed to upload picture: multipart field \"picture\" is required")
	}
	if p.MaxBytes > 0 && fh.Size > p.MaxBytes {
		return nil, c.JSON(http.StatusRequestEntityTooLarge, echo.Map{
			"error": fmt.Sprintf("Failed to upload picture: file exceeds %d bytes", p.MaxBytes),
		})
	}
	f, err := fh.Open()
	if err != nil {
		return nil, badRequest(c, "Failed to upload picture: unreadable file")
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, badRequest(c, "Failed to upload picture: unreadable file")
	}
	head = head[:n]
	ct, ext, err := utils.SniffImage(head)
	if err != nil {
		return nil, badRequest(c, "Failed to upload picture: "+err.Error())
	}

	ctx, cancel := withTimeout(c, 4*requestTimeout)
	defer cancel()

	body := io.MultiReader(bytes.NewReader(head), f)
	path := utils.PictureObjectPath(d.ID, ext)
	if _, err := p.Store.Upload(ctx, p.Bucket, path, body, ct, false); err != nil {
		return nil, failure(c, "upload picture", err)
	}
	updated, err := donors.SetProfilePicture(ctx, d.ID, p.Store.PublicURL(p.Bucket, path))
	if err != nil {
		// keep the bucket free of orphans
		if rmErr := p.Store.Remove(ctx, p.Bucket, path); rmErr != nil {
			logger(c).Warn().Err(rmErr).Str("path", path).Msg("remove orphaned picture")
		}
		return nil, failure(c, "save picture", err)
	}
	if d.ProfilePictureURL != nil {
		p.drop(c, *d.ProfilePictureURL)
	}
	return updated, nil
}

// drop removes the object behind a public picture URL.  Failures are only
// logged; the donor row no longer points at it.
func (p Pictures) drop(c echo.Context, publicURL string) {
	old, ok := p.Store.PathFromPublicURL(p.Bucket, publicURL)
	if !ok {
		return
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()
	if err := p.Store.Remove(ctx, p.Bucket, old); err != nil {
		logger(c).Warn().Err(err).Str("path", old).Msg("remove old picture")
	}
}
