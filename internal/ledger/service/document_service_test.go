package service

import (
	"strings"
	"testing"

	"github.com/bitfantasy/cargotrack/internal/ledger/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_UploadListAndURL(t *testing.T) {
	f := newFixture(t)
	shipment := f.ship(f.readyOrder(1))
	content := "B/L No. 0001"

	doc, err := f.svc.Document.UploadDocument(f.ctx, carrierAddr, shipment.ID, &UploadDocumentRequest{
		Kind:        entity.DocumentBillOfLading,
		FileName:    "Bill.PDF",
		ContentType: "application/pdf",
		Size:        int64(len(content)),
	}, strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, "Bill.PDF", doc.FileName)
	assert.True(t, strings.HasPrefix(doc.ObjectKey, "shipments/1/"))
	assert.True(t, strings.HasSuffix(doc.ObjectKey, ".pdf"))
	assert.Equal(t, content, string(f.store.objects[doc.ObjectKey]))

	docs, err := f.svc.Document.ListDocuments(f.ctx, supplierAddr, shipment.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, doc.ID, docs[0].ID)

	url, err := f.svc.Document.DocumentURL(f.ctx, manufacturerAddr, doc.ID)
	require.NoError(t, err)
	assert.Contains(t, url, doc.ObjectKey)
	assert.Contains(t, url, "expires=900")

	names := f.sink.names()
	assert.Equal(t, entity.EventDocumentUploaded, names[len(names)-1])
}

func TestDocument_Rejections(t *testing.T) {
	f := newFixture(t)
	shipment := f.ship(f.readyOrder(1))
	req := &UploadDocumentRequest{Kind: entity.DocumentPackingList, FileName: "list.txt", Size: 1}

	_, err := f.svc.Document.UploadDocument(f.ctx, strangerAddr, shipment.ID, req, strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.svc.Document.UploadDocument(f.ctx, carrierAddr, 99, req, strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrShipmentNotFound)

	_, err = f.svc.Document.UploadDocument(f.ctx, carrierAddr, shipment.ID, &UploadDocumentRequest{Kind: "selfie", FileName: "a.jpg"}, strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.svc.Document.DocumentURL(f.ctx, carrierAddr, "missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	assert.Empty(t, f.store.objects)

	noStore := NewDocumentService(f.svc.Ledger, nil)
	_, err = noStore.UploadDocument(f.ctx, carrierAddr, shipment.ID, req, strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}
