package api

import (
	"github.com/tendant/simple-portal/pkg/loginflow"
	"github.com/tendant/simple-portal/pkg/portal"
)

type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CredentialsInput struct {
	Payload *CredentialsRequest `in:"body=json"`
}

type CodeRequest struct {
	Code string `json:"code"`
}

type CodeInput struct {
	Payload *CodeRequest `in:"body=json"`
}

// ViewResponse is returned by every login and session endpoint.
type ViewResponse struct {
	View portal.View `json:"view"`
}

// LoginErrorResponse reports a failed login step together with the state the
// visitor is left in.
type LoginErrorResponse struct {
	Error *loginflow.Error `json:"error"`
	View  portal.View      `json:"view"`
}

type ListProfilesInput struct {
	Categoria string `in:"query=categoria"`
}

// RegisterRequest is the account form. Multipart submissions may add a
// "photo" file part.
type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	PrimerNombre    string `json:"primer_nombre"`
	SegundoNombre   string `json:"segundo_nombre"`
	PrimerApellido  string `json:"primer_apellido"`
	SegundoApellido string `json:"segundo_apellido"`
	Cedula          string `json:"cedula"`
	MatriculaNro    string `json:"matricula_nro"`
	Category        string `json:"categoria_usuario"`
}

type UpdateProfileRequest struct {
	PrimerNombre    *string `json:"primer_nombre"`
	SegundoNombre   *string `json:"segundo_nombre"`
	PrimerApellido  *string `json:"primer_apellido"`
	SegundoApellido *string `json:"segundo_apellido"`
	Cedula          *string `json:"cedula"`
	MatriculaNro    *string `json:"matricula_nro"`
	Email           *string `json:"email"`
}

type WeekInput struct {
	Week string `in:"query=week"`
}

type TimeEntryRequest struct {
	ID          string   `json:"id"`
	CasoID      string   `json:"caso_id"`
	Descripcion string   `json:"descripcion_tarea"`
	Fecha       string   `json:"fecha_tarea"`
	Hour        int      `json:"hora"`
	Horas       float64  `json:"horas"`
	Tarifa      *float64 `json:"tarifa_personalizada"`
}

type MoveRequest struct {
	Fecha string `json:"fecha_tarea"`
	Hour  int    `json:"hora"`
}
