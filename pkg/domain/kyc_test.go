package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotKindLabels(t *testing.T) {
	assert.Equal(t, "id_front", SlotFront.UploadLabel())
	assert.Equal(t, "id_back", SlotBack.UploadLabel())
	assert.Equal(t, "selfie", SlotSelfie.UploadLabel())
	assert.Equal(t, "proof_of_address", SlotProofOfAddress.UploadLabel())
}

func TestSubmissionOrderCoversAllSlots(t *testing.T) {
	assert.Equal(t, []SlotKind{SlotFront, SlotBack, SlotSelfie, SlotProofOfAddress}, SubmissionOrder)
}

func TestVerificationStatusClassification(t *testing.T) {
	assert.True(t, VerificationApproved.Terminal())
	assert.True(t, VerificationRejected.Terminal())
	assert.True(t, VerificationExpired.Terminal())
	assert.False(t, VerificationPending.Terminal())
	assert.False(t, VerificationInProgress.Terminal())

	assert.True(t, VerificationRejected.Restartable())
	assert.True(t, VerificationExpired.Restartable())
	assert.False(t, VerificationApproved.Restartable())
	assert.False(t, VerificationPending.Restartable())
}

func TestDocumentTypeCatalog(t *testing.T) {
	idCard, ok := DocumentTypeByID("id_front")
	require.True(t, ok)
	assert.Equal(t, "ID Card", idCard.Name)
	assert.Equal(t, []SlotKind{SlotFront, SlotBack, SlotSelfie}, idCard.RequiredSlots)
	assert.Equal(t, int64(5*1024*1024), idCard.MaxFileSizeBytes)
	assert.True(t, idCard.RequiresSlot(SlotSelfie))
	assert.False(t, idCard.RequiresSlot(SlotProofOfAddress))

	proof, ok := DocumentTypeByID("proof_of_address")
	require.True(t, ok)
	assert.Equal(t, []SlotKind{SlotProofOfAddress}, proof.RequiredSlots)

	_, ok = DocumentTypeByID("drivers_license")
	assert.False(t, ok)
}

func TestAcceptedExtensions(t *testing.T) {
	idCard, ok := DocumentTypeByID("id_front")
	require.True(t, ok)
	assert.Equal(t, []string{"JPEG", "PNG", "PDF"}, AcceptedExtensions(idCard.AcceptedMimeTypes))
	assert.Equal(t, []string{"JPEG", "PNG"}, AcceptedExtensions(SelfieMimeTypes))
}

func TestSubjectExclusivity(t *testing.T) {
	user, err := NewUserSubject("user-1")
	require.NoError(t, err)
	assert.True(t, user.Valid())
	assert.False(t, user.IsTemp())
	assert.Equal(t, "user-1", user.ID())

	temp, err := NewTempSubject("temp_xyz")
	require.NoError(t, err)
	assert.True(t, temp.Valid())
	assert.True(t, temp.IsTemp())
	assert.Equal(t, "temp_xyz", temp.ID())

	_, err = NewUserSubject("  ")
	assert.Error(t, err)
	_, err = NewTempSubject("")
	assert.Error(t, err)

	assert.False(t, Subject{}.Valid())
	assert.False(t, Subject{UserID: "u", TempUserID: "temp_t"}.Valid())
}

func TestGenerateTempSubject(t *testing.T) {
	a, err := GenerateTempSubject()
	require.NoError(t, err)
	b, err := GenerateTempSubject()
	require.NoError(t, err)

	assert.True(t, a.IsTemp())
	assert.True(t, strings.HasPrefix(a.ID(), TempIDPrefix))
	assert.Greater(t, len(a.ID()), len(TempIDPrefix))
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestFileSize(t *testing.T) {
	f := &File{Name: "a.jpg", Data: []byte{1, 2, 3}}
	assert.Equal(t, int64(3), f.Size())
	assert.Equal(t, int64(0), (&File{}).Size())
}
