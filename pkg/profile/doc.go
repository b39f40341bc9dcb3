// Package profile manages rows of the profiles table: reading and editing a
// profile, uploading profile photos, and registering new accounts on behalf
// of an administrator.
//
// # Basic Usage
//
//	svc := profile.NewProfileService(handle,
//		profile.WithRegistrar(connector),
//	)
//
//	p, err := svc.Register(ctx, profile.RegisterParams{
//		Email:          "nora@example.com",
//		Password:       "Abcdef1!",
//		PrimerNombre:   "Nora",
//		PrimerApellido: "Perez",
//		Cedula:         "V-123",
//		MatriculaNro:   "M-9",
//		Category:       profile.CategoryLawyer,
//	})
//
// Registration signs the account up on a separate client obtained from the
// registrar, so the administrator's own session is never replaced. The
// category decides the stored role: lawyers and students become
// "trabajador", clients become "cliente".
//
// # Password Policy
//
// New passwords must be 8 to 20 characters long and contain an uppercase
// letter, a lowercase letter, a digit and one of !@#$%^&*(),.?":{}|<>.
// Use WithPasswordPolicy to supply a different PasswordPolicyChecker.
package profile
