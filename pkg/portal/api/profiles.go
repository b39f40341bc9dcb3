package api

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/ggicci/httpin"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/jinzhu/copier"

	"github.com/tendant/simple-portal/pkg/backend"
	"github.com/tendant/simple-portal/pkg/client"
	apperrors "github.com/tendant/simple-portal/pkg/errors"
	"github.com/tendant/simple-portal/pkg/profile"
)

func (h *Handle) profileService(v *client.Visitor) *profile.ProfileService {
	opts := []profile.Option{
		profile.WithRegistrar(h.connector),
		profile.WithLogger(h.logger),
	}
	if h.notifier != nil {
		opts = append(opts, profile.WithNotifier(h.notifier))
	}
	if h.policy != nil {
		opts = append(opts, profile.WithPasswordPolicy(h.policy))
	}
	return profile.NewProfileService(v.Shell.Handle(), opts...)
}

// GetMe handles GET /me
func (h *Handle) GetMe(w http.ResponseWriter, r *http.Request) {
	v := visitor(r)
	p, err := h.profileService(v).Fetch(r.Context(), userID(v))
	if err != nil {
		h.renderError(w, r, err, "profile")
		return
	}
	render.JSON(w, r, p)
}

// ListProfiles handles GET /profiles?categoria=
func (h *Handle) ListProfiles(w http.ResponseWriter, r *http.Request) {
	input := r.Context().Value(httpin.Input).(*ListProfilesInput)
	profiles, err := h.profileService(visitor(r)).List(r.Context(), input.Categoria)
	if err != nil {
		h.renderError(w, r, err, "profiles")
		return
	}
	render.JSON(w, r, profiles)
}

// RegisterProfile handles POST /profiles. It accepts a JSON body or a
// multipart form with an optional "photo" file.
func (h *Handle) RegisterProfile(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	var photo *profile.Photo

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxPhotoSize); err != nil {
			client.RenderError(w, r, apperrors.InvalidInput("form", err.Error()))
			return
		}
		defer r.MultipartForm.RemoveAll()
		req = registerFromForm(r.MultipartForm)
		if files := r.MultipartForm.File["photo"]; len(files) > 0 {
			p, closer, err := openPhoto(files[0])
			if err != nil {
				client.RenderError(w, r, apperrors.InvalidInput("photo", err.Error()))
				return
			}
			defer closer.Close()
			photo = p
		}
	} else if err := render.DecodeJSON(r.Body, &req); err != nil {
		client.RenderError(w, r, apperrors.InvalidInput("body", "invalid request body"))
		return
	}

	params := profile.RegisterParams{}
	copier.Copy(&params, &req)
	params.Photo = photo

	p, err := h.profileService(visitor(r)).Register(r.Context(), params)
	if err != nil {
		h.renderError(w, r, err, "profile")
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, p)
}

// UpdateProfile handles PUT /profiles/{id}
func (h *Handle) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		client.RenderError(w, r, apperrors.InvalidInput("body", "invalid request body"))
		return
	}
	update := backend.ProfileUpdate{}
	copier.Copy(&update, &req)

	p, err := h.profileService(visitor(r)).Update(r.Context(), chi.URLParam(r, "id"), update)
	if err != nil {
		h.renderError(w, r, err, "profile")
		return
	}
	render.JSON(w, r, p)
}

// DeleteProfile handles DELETE /profiles/{id}
func (h *Handle) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := h.profileService(visitor(r)).Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.renderError(w, r, err, "profile")
		return
	}
	render.NoContent(w, r)
}

// UploadPhoto handles POST /profiles/{id}/photo with a multipart "photo" file.
func (h *Handle) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoSize+1<<20)
	file, header, err := r.FormFile("photo")
	if err != nil {
		client.RenderError(w, r, apperrors.InvalidInput("photo", "a photo file is required"))
		return
	}
	defer file.Close()

	p, err := h.profileService(visitor(r)).UploadPhoto(r.Context(), chi.URLParam(r, "id"), profile.Photo{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		h.renderError(w, r, err, "photo")
		return
	}
	render.JSON(w, r, p)
}

// registerFromForm maps form fields onto the JSON names of RegisterRequest.
func registerFromForm(form *multipart.Form) RegisterRequest {
	values := map[string]string{}
	for k, vs := range form.Value {
		if len(vs) > 0 {
			values[k] = vs[0]
		}
	}
	var req RegisterRequest
	if raw, err := json.Marshal(values); err == nil {
		_ = json.Unmarshal(raw, &req)
	}
	return req
}

func openPhoto(fh *multipart.FileHeader) (*profile.Photo, io.Closer, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	return &profile.Photo{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        f,
	}, f, nil
}
