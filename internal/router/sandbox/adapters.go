package sandbox

import (
	"context"
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

// adapterSource mirrors the web UI's login() and nonce handling on top of
// the router's sjcl wrappers. It is evaluated after the library and
// session scripts so that it sees myIv, mySalt, currentSessionId and the
// DEFAULT_SJCL_* parameters.
const adapterSource = `
function createLoginData(name, password) {
	var jsData = JSON.stringify({ "Password": password, "Nonce": currentSessionId });
	var key = sjclPbkdf2(password, mySalt, DEFAULT_SJCL_ITERATIONS, DEFAULT_SJCL_KEYSIZEBITS);
	var authData = "loginPassword";
	var encryptData = sjclCCMencrypt(key, jsData, myIv, authData, DEFAULT_SJCL_TAGLENGTH);

	return {
		"EncryptData": encryptData,
		"Name": name,
		"AuthData": authData,
		"_key": key
	};
}

function decryptNonce(key, encryptedNonce) {
	return sjclCCMdecrypt(key, encryptedNonce, myIv, "nonce", DEFAULT_SJCL_TAGLENGTH);
}
`

// Symbols the library and session scripts must define.
var requiredSymbols = []string{
	"sjclPbkdf2",
	"sjclCCMencrypt",
	"sjclCCMdecrypt",
	"DEFAULT_SJCL_ITERATIONS",
	"DEFAULT_SJCL_KEYSIZEBITS",
	"DEFAULT_SJCL_TAGLENGTH",
	"currentSessionId",
	"myIv",
	"mySalt",
}

// MissingSymbolsError reports names the evaluated scripts failed to define.
type MissingSymbolsError struct {
	Names []string
}

func (e *MissingSymbolsError) Error() string {
	return "scripts do not define " + strings.Join(e.Names, ", ")
}

// LoadSession evaluates the crypto library, its wrapper and the scraped
// session script, in that order, then installs the adapter functions.
func (r *Runtime) LoadSession(ctx context.Context, sjcl, sjclCrypto, session Script) error {
	if err := r.Evaluate(ctx, sjcl, sjclCrypto, session); err != nil {
		return err
	}

	missing, err := r.Missing(ctx, requiredSymbols...)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return &MissingSymbolsError{Names: missing}
	}

	return r.Evaluate(ctx, Script{Name: "adapters", Source: adapterSource})
}

// Constants reads the crypto parameters from the evaluated scripts.
func (r *Runtime) Constants(ctx context.Context) (Constants, error) {
	var c Constants
	err := r.Do(ctx, func(vm *goja.Runtime) error {
		for name, dst := range map[string]*int64{
			"DEFAULT_SJCL_ITERATIONS":  &c.Iterations,
			"DEFAULT_SJCL_KEYSIZEBITS": &c.KeySizeBits,
			"DEFAULT_SJCL_TAGLENGTH":   &c.TagLength,
		} {
			v, err := vm.RunString(name)
			if err != nil {
				return fmt.Errorf("read %s: %w", name, err)
			}
			*dst = v.ToInteger()
		}
		return nil
	})
	return c, err
}

// CreateLoginData derives the login key and encrypts the password payload.
func (r *Runtime) CreateLoginData(ctx context.Context, name, password string) (*LoginData, error) {
	var data LoginData
	err := r.Do(ctx, func(vm *goja.Runtime) error {
		v, err := call(vm, "createLoginData", name, password)
		if err != nil {
			return err
		}
		obj := v.ToObject(vm)
		for field, dst := range map[string]*string{
			"EncryptData": &data.EncryptData,
			"Name":        &data.Name,
			"AuthData":    &data.AuthData,
			"_key":        &data.Key,
		} {
			fv := obj.Get(field)
			if fv == nil || goja.IsUndefined(fv) || goja.IsNull(fv) {
				return fmt.Errorf("createLoginData result lacks %s", field)
			}
			*dst = fv.String()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &data, nil
}

// DecryptNonce decrypts the CSRF nonce returned by the set-password call.
func (r *Runtime) DecryptNonce(ctx context.Context, key, encryptedNonce string) (string, error) {
	out, err := r.Call(ctx, "decryptNonce", key, encryptedNonce)
	if err != nil {
		return "", err
	}
	nonce, ok := out.(string)
	if !ok || nonce == "" {
		return "", fmt.Errorf("decryptNonce returned %T, want non-empty string", out)
	}
	return nonce, nil
}
