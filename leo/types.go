package leo

import "encoding/json"

// Directory is one synced-directory record on the server. A machine may
// register several roots; each is identified by the (machineId, uri) pair.
type Directory struct {
	ID               string `json:"id"`
	TenantID         string `json:"tenantId,omitempty"`
	URI              string `json:"uri"`
	MachineID        string `json:"machineId"`
	WorkingDirectory bool   `json:"workingDirectory"`
}

// CreateDirectoryRequest is the payload for POST /api/v1/synced-directories.
type CreateDirectoryRequest struct {
	MachineID string `json:"machineId"`
	URI       string `json:"uri"`
}

// FileRecord is the server's identity for one synchronized file, returned
// from the create-file endpoint and echoed in sync metadata.
type FileRecord struct {
	ComponentID         string `json:"componentId"`
	FilePathInDirectory string `json:"filePathInDirectory"`
	CheckSum            string `json:"checkSum"`
	MimeType            string `json:"mimeType"`
}

// SyncMetadata is a full snapshot of a directory's remote files.
type SyncMetadata struct {
	DirectoryID string             `json:"directoryId"`
	Files       []SyncMetadataFile `json:"files"`
}

// SyncMetadataFile is one entry in a directory snapshot.
type SyncMetadataFile struct {
	ComponentID         string          `json:"componentId"`
	FileStored          bool            `json:"fileStored"`
	ParentStatus        string          `json:"parentStatus"`
	CheckSum            string          `json:"checkSum"`
	FilePathInDirectory string          `json:"filePathInDirectory"`
	MimeType            string          `json:"mimeType"`
	ChildrenStatuses    json.RawMessage `json:"childrenStatuses,omitempty"`
}

// Record converts a snapshot entry to its FileRecord form.
func (f SyncMetadataFile) Record() *FileRecord {
	return &FileRecord{
		ComponentID:         f.ComponentID,
		FilePathInDirectory: f.FilePathInDirectory,
		CheckSum:            f.CheckSum,
		MimeType:            f.MimeType,
	}
}

// Dependency links a parent record to one child by content identity. The
// server expects the child's checksum and its forward-slash relative path.
type Dependency struct {
	CheckSum string `json:"checkSum"`
	FilePath string `json:"filePath"`
}
